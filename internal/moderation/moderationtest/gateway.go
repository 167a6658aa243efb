// Package moderationtest provides an in-memory Gateway for tests.
package moderationtest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/moderation"
)

// Call records a mutating gateway call.
type Call struct {
	Method    string
	GuildID   snowflake.ID
	UserID    snowflake.ID
	RoleID    snowflake.ID
	ChannelID snowflake.ID
	Reason    string
	Content   string
	Embed     *moderation.Embed
}

// Gateway is a fake moderation.Gateway backed by maps. Errors keyed by method
// name are returned by the matching call.
type Gateway struct {
	mu sync.Mutex

	Self     snowflake.ID
	Guilds   map[snowflake.ID]moderation.Guild
	Members  map[snowflake.ID]moderation.Member // keyed by user id
	Users    map[snowflake.ID]moderation.User
	Roles    map[snowflake.ID]moderation.Role
	Bans     map[snowflake.ID]moderation.User
	Messages map[snowflake.ID][]moderation.Message // keyed by channel id
	Channels map[snowflake.ID]bool
	Errors   map[string]error

	// PurgeFailAfter is how many matching messages PurgeMessages removes
	// before returning its configured error.
	PurgeFailAfter int

	calls []Call
}

// New returns an empty fake whose bot user is selfID.
func New(selfID snowflake.ID) *Gateway {
	return &Gateway{
		Self:     selfID,
		Guilds:   make(map[snowflake.ID]moderation.Guild),
		Members:  make(map[snowflake.ID]moderation.Member),
		Users:    make(map[snowflake.ID]moderation.User),
		Roles:    make(map[snowflake.ID]moderation.Role),
		Bans:     make(map[snowflake.ID]moderation.User),
		Messages: make(map[snowflake.ID][]moderation.Message),
		Channels: make(map[snowflake.ID]bool),
		Errors:   make(map[string]error),
	}
}

// AddMember registers a member and its user.
func (g *Gateway) AddMember(m moderation.Member) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Members[m.ID] = m
	g.Users[m.ID] = m.User
}

// AddGuildRole registers a role.
func (g *Gateway) AddGuildRole(r moderation.Role) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Roles[r.ID] = r
}

// FailWith makes every later call of method return err.
func (g *Gateway) FailWith(method string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Errors[method] = err
}

// Calls returns the recorded mutating calls.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()

	return slices.Clone(g.calls)
}

// CallsTo returns the recorded calls of method.
func (g *Gateway) CallsTo(method string) []Call {
	var out []Call
	for _, c := range g.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}

	return out
}

func (g *Gateway) SelfID() snowflake.ID {
	return g.Self
}

func (g *Gateway) Guild(_ context.Context, guildID snowflake.ID) (moderation.Guild, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.Errors["Guild"]; err != nil {
		return moderation.Guild{}, err
	}

	guild, ok := g.Guilds[guildID]
	if !ok {
		return moderation.Guild{}, fmt.Errorf("%w: guild %d", moderation.ErrGatewayNotFound, guildID)
	}

	return guild, nil
}

func (g *Gateway) Member(_ context.Context, _, userID snowflake.ID) (moderation.Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.Errors["Member"]; err != nil {
		return moderation.Member{}, err
	}

	member, ok := g.Members[userID]
	if !ok {
		return moderation.Member{}, fmt.Errorf("%w: member %d", moderation.ErrGatewayNotFound, userID)
	}

	return member, nil
}

func (g *Gateway) User(_ context.Context, userID snowflake.ID) (moderation.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.Errors["User"]; err != nil {
		return moderation.User{}, err
	}

	user, ok := g.Users[userID]
	if !ok {
		return moderation.User{}, fmt.Errorf("%w: user %d", moderation.ErrGatewayNotFound, userID)
	}

	return user, nil
}

func (g *Gateway) Role(_ context.Context, _, roleID snowflake.ID) (moderation.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.Errors["Role"]; err != nil {
		return moderation.Role{}, err
	}

	role, ok := g.Roles[roleID]
	if !ok {
		return moderation.Role{}, fmt.Errorf("%w: role %d", moderation.ErrGatewayNotFound, roleID)
	}

	return role, nil
}

func (g *Gateway) BannedUser(_ context.Context, _, userID snowflake.ID) (*moderation.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.Errors["BannedUser"]; err != nil {
		return nil, err
	}

	user, ok := g.Bans[userID]
	if !ok {
		return nil, nil
	}

	return &user, nil
}

func (g *Gateway) Ban(_ context.Context, guildID, userID snowflake.ID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Method: "Ban", GuildID: guildID, UserID: userID, Reason: reason})

	if err := g.Errors["Ban"]; err != nil {
		return err
	}

	g.Bans[userID] = g.Users[userID]
	delete(g.Members, userID)

	return nil
}

func (g *Gateway) Kick(_ context.Context, guildID, userID snowflake.ID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Method: "Kick", GuildID: guildID, UserID: userID, Reason: reason})

	if err := g.Errors["Kick"]; err != nil {
		return err
	}

	delete(g.Members, userID)

	return nil
}

func (g *Gateway) Unban(_ context.Context, guildID, userID snowflake.ID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Method: "Unban", GuildID: guildID, UserID: userID, Reason: reason})

	if err := g.Errors["Unban"]; err != nil {
		return err
	}

	delete(g.Bans, userID)

	return nil
}

func (g *Gateway) PurgeMessages(
	_ context.Context, channelID snowflake.ID, limit int, filter moderation.MessageFilter, reason string,
) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Method: "PurgeMessages", ChannelID: channelID, Reason: reason})

	err := g.Errors["PurgeMessages"]
	if err != nil && g.PurgeFailAfter == 0 {
		return 0, err
	}

	messages := g.Messages[channelID]

	// Newest messages are at the end of the slice
	start := max(len(messages)-limit, 0)
	kept := slices.Clone(messages[:start])
	deleted := 0

	for _, m := range messages[start:] {
		if filter(m) && (err == nil || deleted < g.PurgeFailAfter) {
			deleted++
			continue
		}

		kept = append(kept, m)
	}

	g.Messages[channelID] = kept

	return deleted, err
}

func (g *Gateway) AddRole(_ context.Context, guildID, userID, roleID snowflake.ID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Method: "AddRole", GuildID: guildID, UserID: userID, RoleID: roleID, Reason: reason})

	if err := g.Errors["AddRole"]; err != nil {
		return err
	}

	if member, ok := g.Members[userID]; ok {
		member.RoleIDs = append(slices.Clone(member.RoleIDs), roleID)
		g.Members[userID] = member
	}

	return nil
}

func (g *Gateway) RemoveRole(_ context.Context, guildID, userID, roleID snowflake.ID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Method: "RemoveRole", GuildID: guildID, UserID: userID, RoleID: roleID, Reason: reason})

	if err := g.Errors["RemoveRole"]; err != nil {
		return err
	}

	if member, ok := g.Members[userID]; ok {
		member.RoleIDs = slices.DeleteFunc(slices.Clone(member.RoleIDs), func(id snowflake.ID) bool {
			return id == roleID
		})
		g.Members[userID] = member
	}

	return nil
}

func (g *Gateway) SendDirect(_ context.Context, userID snowflake.ID, content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Method: "SendDirect", UserID: userID, Content: content})

	return g.Errors["SendDirect"]
}

func (g *Gateway) SendEmbed(_ context.Context, channelID snowflake.ID, embed moderation.Embed) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Method: "SendEmbed", ChannelID: channelID, Embed: &embed})

	return g.Errors["SendEmbed"]
}

var _ moderation.Gateway = (*Gateway)(nil)

// ChannelExists reports whether the channel was registered in Channels.
func (g *Gateway) ChannelExists(_ context.Context, channelID snowflake.ID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.Errors["ChannelExists"]; err != nil {
		return false, err
	}

	return g.Channels[channelID], nil
}

// SendMessage records a plain channel message and returns a fresh id.
func (g *Gateway) SendMessage(_ context.Context, channelID, _ snowflake.ID, content string) (snowflake.ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Method: "SendMessage", ChannelID: channelID, Content: content})

	if err := g.Errors["SendMessage"]; err != nil {
		return 0, err
	}

	return snowflake.ID(len(g.calls)), nil
}
