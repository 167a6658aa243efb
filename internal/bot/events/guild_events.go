package events

import (
	"github.com/disgoorg/disgo/events"
	"go.uber.org/zap"
)

// GuildEventHandler tracks the guilds the bot is part of.
type GuildEventHandler struct {
	logger *zap.Logger
}

// NewGuildEventHandler creates a new instance of the guild event handler.
func NewGuildEventHandler(logger *zap.Logger) *GuildEventHandler {
	return &GuildEventHandler{
		logger: logger.Named("guild_events"),
	}
}

// OnGuildJoin handles the event when the bot joins a new guild.
func (h *GuildEventHandler) OnGuildJoin(event *events.GuildJoin) {
	h.logger.Info("Bot joined a new guild",
		zap.Uint64("guild_id", uint64(event.Guild.ID)),
		zap.String("guild_name", event.Guild.Name))
}

// OnGuildLeave handles the event when the bot is removed from a guild. The
// guild's settings are kept so they apply again if the bot is re-added.
func (h *GuildEventHandler) OnGuildLeave(event *events.GuildLeave) {
	h.logger.Info("Bot left a guild",
		zap.Uint64("guild_id", uint64(event.GuildID)),
		zap.String("guild_name", event.Guild.Name))
}
