// Package gateway implements moderation.Gateway on top of the Discord REST API.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/moderation"
	"go.uber.org/zap"
)

const (
	// bulkDeleteMaxAge is how old a message may be for bulk deletion.
	bulkDeleteMaxAge = 14 * 24 * time.Hour
	// bulkDeleteMargin keeps messages close to the limit out of bulk requests.
	bulkDeleteMargin = time.Minute
	// pageSize is the largest page the messages endpoint returns.
	pageSize = 100
)

// Gateway talks to Discord over REST.
type Gateway struct {
	rest   rest.Rest
	selfID snowflake.ID
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Gateway for the bot user selfID.
func New(client rest.Rest, selfID snowflake.ID, logger *zap.Logger) *Gateway {
	return &Gateway{
		rest:   client,
		selfID: selfID,
		logger: logger.Named("gateway"),
		now:    time.Now,
	}
}

// SelfID implements moderation.Gateway.
func (g *Gateway) SelfID() snowflake.ID {
	return g.selfID
}

// Guild implements moderation.Gateway.
func (g *Gateway) Guild(ctx context.Context, guildID snowflake.ID) (moderation.Guild, error) {
	guild, err := g.rest.GetGuild(guildID, false, rest.WithCtx(ctx))
	if err != nil {
		return moderation.Guild{}, classify("get guild", err)
	}

	return moderation.Guild{
		ID:      guild.ID,
		Name:    guild.Name,
		OwnerID: guild.OwnerID,
	}, nil
}

// Member implements moderation.Gateway. The rank is the position of the
// member's highest role.
func (g *Gateway) Member(ctx context.Context, guildID, userID snowflake.ID) (moderation.Member, error) {
	member, err := g.rest.GetMember(guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		return moderation.Member{}, classify("get member", err)
	}

	roles, err := g.rest.GetRoles(guildID, rest.WithCtx(ctx))
	if err != nil {
		return moderation.Member{}, classify("get roles", err)
	}

	return moderation.Member{
		User:    toUser(member.User),
		RoleIDs: member.RoleIDs,
		Rank:    rankOf(roles, member.RoleIDs),
	}, nil
}

// User implements moderation.Gateway.
func (g *Gateway) User(ctx context.Context, userID snowflake.ID) (moderation.User, error) {
	user, err := g.rest.GetUser(userID, rest.WithCtx(ctx))
	if err != nil {
		return moderation.User{}, classify("get user", err)
	}

	return toUser(*user), nil
}

// Role implements moderation.Gateway.
func (g *Gateway) Role(ctx context.Context, guildID, roleID snowflake.ID) (moderation.Role, error) {
	roles, err := g.rest.GetRoles(guildID, rest.WithCtx(ctx))
	if err != nil {
		return moderation.Role{}, classify("get roles", err)
	}

	for _, role := range roles {
		if role.ID == roleID {
			return moderation.Role{ID: role.ID, Name: role.Name, Position: role.Position}, nil
		}
	}

	return moderation.Role{}, fmt.Errorf("%w: role %d", moderation.ErrGatewayNotFound, roleID)
}

// BannedUser implements moderation.Gateway.
func (g *Gateway) BannedUser(ctx context.Context, guildID, userID snowflake.ID) (*moderation.User, error) {
	ban, err := g.rest.GetBan(guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		err = classify("get ban", err)
		if errors.Is(err, moderation.ErrGatewayNotFound) {
			return nil, nil
		}

		return nil, err
	}

	user := toUser(ban.User)

	return &user, nil
}

// Ban implements moderation.Gateway. No message history is deleted.
func (g *Gateway) Ban(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	if err := g.rest.AddBan(guildID, userID, 0, rest.WithCtx(ctx), rest.WithReason(reason)); err != nil {
		return classify("add ban", err)
	}

	return nil
}

// Kick implements moderation.Gateway.
func (g *Gateway) Kick(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	if err := g.rest.RemoveMember(guildID, userID, rest.WithCtx(ctx), rest.WithReason(reason)); err != nil {
		return classify("remove member", err)
	}

	return nil
}

// Unban implements moderation.Gateway.
func (g *Gateway) Unban(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	if err := g.rest.DeleteBan(guildID, userID, rest.WithCtx(ctx), rest.WithReason(reason)); err != nil {
		return classify("delete ban", err)
	}

	return nil
}

// AddRole implements moderation.Gateway.
func (g *Gateway) AddRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error {
	if err := g.rest.AddMemberRole(guildID, userID, roleID, rest.WithCtx(ctx), rest.WithReason(reason)); err != nil {
		return classify("add member role", err)
	}

	return nil
}

// RemoveRole implements moderation.Gateway.
func (g *Gateway) RemoveRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error {
	if err := g.rest.RemoveMemberRole(guildID, userID, roleID, rest.WithCtx(ctx), rest.WithReason(reason)); err != nil {
		return classify("remove member role", err)
	}

	return nil
}

// SendDirect implements moderation.Gateway.
func (g *Gateway) SendDirect(ctx context.Context, userID snowflake.ID, content string) error {
	channel, err := g.rest.CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return classify("create dm channel", err)
	}

	_, err = g.rest.CreateMessage(channel.ID(), discord.NewMessageCreateBuilder().
		SetContent(content).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		return classify("send direct message", err)
	}

	return nil
}

// SendEmbed implements moderation.Gateway.
func (g *Gateway) SendEmbed(ctx context.Context, channelID snowflake.ID, embed moderation.Embed) error {
	_, err := g.rest.CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetEmbeds(buildEmbed(embed)).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		return classify("send embed", err)
	}

	return nil
}

// SendMessage posts content to channelID, replying to replyTo when it is set.
func (g *Gateway) SendMessage(ctx context.Context, channelID, replyTo snowflake.ID, content string) (snowflake.ID, error) {
	builder := discord.NewMessageCreateBuilder().
		SetContent(content).
		SetAllowedMentions(&discord.AllowedMentions{RepliedUser: false})

	if replyTo != 0 {
		builder.SetMessageReferenceByID(replyTo)
	}

	message, err := g.rest.CreateMessage(channelID, builder.Build(), rest.WithCtx(ctx))
	if err != nil {
		return 0, classify("send message", err)
	}

	return message.ID, nil
}

// DeleteMessage removes a single message.
func (g *Gateway) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	if err := g.rest.DeleteMessage(channelID, messageID, rest.WithCtx(ctx)); err != nil {
		return classify("delete message", err)
	}

	return nil
}

// ChannelExists reports whether the channel can still be fetched.
func (g *Gateway) ChannelExists(ctx context.Context, channelID snowflake.ID) (bool, error) {
	if _, err := g.rest.GetChannel(channelID, rest.WithCtx(ctx)); err != nil {
		err = classify("get channel", err)
		if errors.Is(err, moderation.ErrGatewayNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// classify wraps a REST error with the matching gateway error.
func classify(op string, err error) error {
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s: %w", moderation.ErrGatewayForbidden, op, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s: %w", moderation.ErrGatewayNotFound, op, err)
		}
	}

	return fmt.Errorf("%w: %s: %w", moderation.ErrGatewayTransient, op, err)
}

// rankOf returns the highest position among roleIDs, or 0 without roles.
func rankOf(roles []discord.Role, roleIDs []snowflake.ID) int {
	positions := make(map[snowflake.ID]int, len(roles))
	for _, role := range roles {
		positions[role.ID] = role.Position
	}

	rank := 0
	for _, id := range roleIDs {
		if pos, ok := positions[id]; ok && pos > rank {
			rank = pos
		}
	}

	return rank
}

func toUser(u discord.User) moderation.User {
	return moderation.User{
		ID:   u.ID,
		Name: u.Username,
		Bot:  u.Bot,
	}
}

func buildEmbed(e moderation.Embed) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle(e.Title).
		SetDescription(e.Description).
		SetColor(e.Color)

	for _, field := range e.Fields {
		builder.AddField(field.Name, field.Value, field.Inline)
	}

	if e.Footer != "" {
		builder.SetFooterText(e.Footer)
	}

	if !e.Timestamp.IsZero() {
		builder.SetTimestamp(e.Timestamp)
	}

	return builder.Build()
}

var _ moderation.Gateway = (*Gateway)(nil)
