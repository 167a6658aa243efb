package moderation

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/authz"
)

// User is a platform account, whether or not it belongs to the guild.
type User struct {
	ID   snowflake.ID
	Name string
	Bot  bool
}

// Mention returns the platform mention markup for the user.
func (u User) Mention() string {
	return "<@" + u.ID.String() + ">"
}

// Display returns the name when known and the id otherwise.
func (u User) Display() string {
	if u.Name != "" {
		return u.Name
	}

	return u.ID.String()
}

// Member is a user in the context of a guild. Rank is the position of the
// member's highest role; members without roles have rank 0.
type Member struct {
	User
	RoleIDs []snowflake.ID
	Rank    int
}

// Guild identifies the guild an action happens in.
type Guild struct {
	ID      snowflake.ID
	Name    string
	OwnerID snowflake.ID
}

// Role is a guild role.
type Role struct {
	ID       snowflake.ID
	Name     string
	Position int
}

// Actor is the member invoking an action.
type Actor struct {
	Member
	Guild Guild
}

// IsOwner reports whether the actor owns the guild.
func (a Actor) IsOwner() bool {
	return a.ID == a.Guild.OwnerID
}

// Principal returns the identity used for tier classification.
func (a Actor) Principal() authz.Principal {
	return authz.Principal{
		UserID:       a.ID,
		RoleIDs:      a.RoleIDs,
		GuildOwnerID: a.Guild.OwnerID,
	}
}

// Message is the subset of a channel message needed for purging.
type Message struct {
	ID        snowflake.ID
	AuthorID  snowflake.ID
	CreatedAt time.Time
}

// MessageFilter selects messages eligible for deletion.
type MessageFilter func(Message) bool

// TargetKind tags the variant held by a Target.
type TargetKind int

const (
	// TargetInGuild is a current member of the guild.
	TargetInGuild TargetKind = iota
	// TargetExternal is a user known only by id.
	TargetExternal
)

// Target is the subject of a moderation action.
type Target struct {
	Kind   TargetKind
	User   User
	Member Member // only set for TargetInGuild
}

// InGuild wraps a guild member.
func InGuild(m Member) Target {
	return Target{Kind: TargetInGuild, User: m.User, Member: m}
}

// ExternalUser wraps a user that is not a guild member.
func ExternalUser(u User) Target {
	return Target{Kind: TargetExternal, User: u}
}

// ID returns the target's user id.
func (t Target) ID() snowflake.ID {
	return t.User.ID
}

// TargetRef is a target as given by a command: either an already-resolved
// member or a bare user id.
type TargetRef struct {
	Member *Member
	UserID snowflake.ID
}

// RefMember returns a reference to a resolved member.
func RefMember(m Member) TargetRef {
	return TargetRef{Member: &m, UserID: m.ID}
}

// RefID returns a reference to a bare user id.
func RefID(id snowflake.ID) TargetRef {
	return TargetRef{UserID: id}
}
