package moderation

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Gateway is the platform surface used by the pipeline. Implementations wrap
// failures with ErrGatewayForbidden, ErrGatewayNotFound or ErrGatewayTransient.
type Gateway interface {
	// SelfID returns the bot's user id.
	SelfID() snowflake.ID

	Guild(ctx context.Context, guildID snowflake.ID) (Guild, error)
	Member(ctx context.Context, guildID, userID snowflake.ID) (Member, error)
	User(ctx context.Context, userID snowflake.ID) (User, error)
	Role(ctx context.Context, guildID, roleID snowflake.ID) (Role, error)

	// BannedUser returns the banned user, or nil when the user has no active ban.
	BannedUser(ctx context.Context, guildID, userID snowflake.ID) (*User, error)

	Ban(ctx context.Context, guildID, userID snowflake.ID, reason string) error
	Kick(ctx context.Context, guildID, userID snowflake.ID, reason string) error
	Unban(ctx context.Context, guildID, userID snowflake.ID, reason string) error

	// PurgeMessages scans up to limit recent messages of the channel and deletes
	// those accepted by filter. It returns the number actually deleted.
	PurgeMessages(ctx context.Context, channelID snowflake.ID, limit int, filter MessageFilter, reason string) (int, error)

	AddRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error

	SendDirect(ctx context.Context, userID snowflake.ID, content string) error
	SendEmbed(ctx context.Context, channelID snowflake.ID, embed Embed) error
}

// Embed is a platform-neutral rich message.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
	Timestamp   time.Time
}

// EmbedField is a single name/value pair of an Embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}
