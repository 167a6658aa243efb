package events

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/guildconfig"
	"github.com/robalyx/sentinel/internal/moderation"
	"go.uber.org/zap"
)

// joinTimeout bounds the work done for a single member join.
const joinTimeout = 15 * time.Second

// Gateway is the subset of the platform used on member joins.
type Gateway interface {
	AddRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error
	SendMessage(ctx context.Context, channelID, replyTo snowflake.ID, content string) (snowflake.ID, error)
}

// MemberJoin describes a member that joined a guild.
type MemberJoin struct {
	GuildID   snowflake.ID
	GuildName string
	UserID    snowflake.ID
	Bot       bool
}

// MemberEventHandler greets new members and grants the configured auto-role.
type MemberEventHandler struct {
	config  moderation.ConfigReader
	gateway Gateway
	logger  *zap.Logger
}

// NewMemberEventHandler creates a new instance of the member event handler.
func NewMemberEventHandler(config moderation.ConfigReader, gateway Gateway, logger *zap.Logger) *MemberEventHandler {
	return &MemberEventHandler{
		config:  config,
		gateway: gateway,
		logger:  logger.Named("member_events"),
	}
}

// OnGuildMemberJoin handles the gateway event for a new member.
func (h *MemberEventHandler) OnGuildMemberJoin(event *events.GuildMemberJoin) {
	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()

	join := MemberJoin{
		GuildID: event.GuildID,
		UserID:  event.Member.User.ID,
		Bot:     event.Member.User.Bot,
	}

	if guild, ok := event.Client().Caches().Guild(event.GuildID); ok {
		join.GuildName = guild.Name
	}

	h.HandleJoin(ctx, join)
}

// HandleJoin grants the auto-role and posts the welcome message. Both steps
// are best effort; failures are logged and never retried.
func (h *MemberEventHandler) HandleJoin(ctx context.Context, join MemberJoin) {
	cfg := h.config.Get(join.GuildID)

	if cfg.AutoRoleID != nil && !join.Bot {
		err := h.gateway.AddRole(ctx, join.GuildID, join.UserID, *cfg.AutoRoleID, "Auto role on join")
		if err != nil {
			h.logger.Warn("Failed to grant auto-role",
				zap.Uint64("guild_id", uint64(join.GuildID)),
				zap.Uint64("user_id", uint64(join.UserID)),
				zap.Uint64("role_id", uint64(*cfg.AutoRoleID)),
				zap.Error(err))
		}
	}

	if cfg.WelcomeChannelID == nil {
		return
	}

	if _, err := h.gateway.SendMessage(ctx, *cfg.WelcomeChannelID, 0, welcomeMessage(join, cfg)); err != nil {
		h.logger.Warn("Failed to send welcome message",
			zap.Uint64("guild_id", uint64(join.GuildID)),
			zap.Uint64("channel_id", uint64(*cfg.WelcomeChannelID)),
			zap.Error(err))
	}
}

func welcomeMessage(join MemberJoin, cfg *guildconfig.GuildAuthConfig) string {
	guild := join.GuildName
	if guild == "" {
		guild = "the server"
	}

	msg := fmt.Sprintf("Welcome to %s, <@%d>!", guild, join.UserID)
	if cfg.RulesChannelID != nil {
		return fmt.Sprintf("%s Please read the rules in <#%d>.", msg, *cfg.RulesChannelID)
	}

	return msg + " Please read the rules."
}
