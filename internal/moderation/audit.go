package moderation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/guildconfig"
	"go.uber.org/zap"
)

// AuditRecord describes an executed action.
type AuditRecord struct {
	ID        string
	Kind      ActionKind
	GuildID   snowflake.ID
	Actor     User
	Target    User
	Reason    string
	CreatedAt time.Time

	// Clear only
	ChannelID    snowflake.ID
	Count        int
	AuthorFilter *User

	// Role actions only
	Role *Role
}

// Embed renders the record for the audit channel.
func (r *AuditRecord) Embed() Embed {
	embed := Embed{
		Title:     r.Kind.Title(),
		Color:     r.Kind.Color(),
		Footer:    "Action ID: " + r.ID,
		Timestamp: r.CreatedAt,
	}

	switch r.Kind {
	case ActionClear:
		embed.Description = fmt.Sprintf("Deleted **%d** messages in <#%s>", r.Count, r.ChannelID)
		if r.AuthorFilter != nil {
			embed.Description += " from " + r.AuthorFilter.Mention()
		}

		embed.Fields = append(embed.Fields,
			EmbedField{Name: "Channel", Value: fmt.Sprintf("<#%s> (%s)", r.ChannelID, r.ChannelID)},
			EmbedField{Name: "Deleted", Value: strconv.Itoa(r.Count), Inline: true},
		)
	case ActionBan, ActionKick, ActionUnban, ActionGrantRole, ActionRevokeRole:
		embed.Fields = append(embed.Fields,
			EmbedField{Name: "User", Value: describeUser(r.Target)},
		)
	}

	if r.Role != nil {
		embed.Fields = append(embed.Fields,
			EmbedField{Name: "Role", Value: fmt.Sprintf("%s (%s)", r.Role.Name, r.Role.ID)},
		)
	}

	embed.Fields = append(embed.Fields, EmbedField{Name: "By", Value: describeUser(r.Actor)})

	if r.Reason != "" {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Reason", Value: r.Reason})
	}

	return embed
}

func describeUser(u User) string {
	if u.Name == "" {
		return fmt.Sprintf("%s (%s)", u.Mention(), u.ID)
	}

	return fmt.Sprintf("%s (%s)", u.Name, u.ID)
}

// ConfigReader reads guild configuration.
type ConfigReader interface {
	Get(guildID snowflake.ID) *guildconfig.GuildAuthConfig
}

// AuditSink posts audit records to the guild's log channel.
type AuditSink struct {
	gateway Gateway
	config  ConfigReader
	logger  *zap.Logger
}

// NewAuditSink creates an AuditSink.
func NewAuditSink(gateway Gateway, config ConfigReader, logger *zap.Logger) *AuditSink {
	return &AuditSink{
		gateway: gateway,
		config:  config,
		logger:  logger.Named("audit"),
	}
}

// Emit posts the record when a log channel is configured. It reports whether
// the record was delivered; failures are logged and otherwise ignored.
func (s *AuditSink) Emit(ctx context.Context, guildID snowflake.ID, record *AuditRecord) bool {
	channelID := s.config.Get(guildID).LogChannelID
	if channelID == nil {
		return false
	}

	if err := s.gateway.SendEmbed(ctx, *channelID, record.Embed()); err != nil {
		s.logger.Debug("Failed to deliver audit record",
			zap.Uint64("guild_id", uint64(guildID)),
			zap.Uint64("channel_id", uint64(*channelID)),
			zap.String("action_id", record.ID),
			zap.Error(err))

		return false
	}

	return true
}
