// Package bot runs the Discord client and feeds guild messages to the
// command router.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/bot/commands"
	botEvents "github.com/robalyx/sentinel/internal/bot/events"
	restGateway "github.com/robalyx/sentinel/internal/discord/gateway"
	"github.com/robalyx/sentinel/internal/guildconfig"
	"github.com/robalyx/sentinel/internal/moderation"
	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Bot handles the Discord connection and dispatches commands. Each command
// runs as a task of a bounded pool.
type Bot struct {
	client  bot.Client
	gateway *restGateway.Gateway
	router  *commands.Router
	members *botEvents.MemberEventHandler
	guilds  *botEvents.GuildEventHandler
	pool    *pool.Pool
	timeout time.Duration
	logger  *zap.Logger
}

// New creates the Discord client and wires the moderation pipeline, the
// command router and the event handlers on top of it.
func New(cfg *config.Discord, store *guildconfig.Store, logger *zap.Logger) (*Bot, error) {
	b := &Bot{
		pool:    pool.New().WithMaxGoroutines(cfg.MaxConcurrentCommands),
		timeout: time.Duration(cfg.RequestTimeout) * time.Millisecond,
		logger:  logger.Named("bot"),
		guilds:  botEvents.NewGuildEventHandler(logger),
	}

	// Configure Discord client with required gateway intents and event handlers
	client, err := disgo.New(cfg.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentGuildMembers,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMessageCreate: b.handleGuildMessage,
			OnGuildMemberJoin:    b.handleMemberJoin,
			OnGuildJoin:          b.guilds.OnGuildJoin,
			OnGuildLeave:         b.guilds.OnGuildLeave,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	b.client = client
	b.gateway = restGateway.New(client.Rest(), client.ID(), logger)

	pipeline := moderation.NewPipeline(b.gateway, store, logger)
	b.router = commands.NewRouter(cfg.Prefix, pipeline, store, b.gateway, logger)
	b.members = botEvents.NewMemberEventHandler(store, b.gateway, logger)

	return b, nil
}

// Start opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot", zap.Uint64("user_id", uint64(b.client.ID())))
	return b.client.OpenGateway(ctx)
}

// Close shuts down the gateway connection and waits for running commands.
func (b *Bot) Close() {
	b.logger.Info("Closing bot")
	b.client.Close(context.Background())
	b.pool.Wait()
}

// handleGuildMessage queues a guild message for command processing. Messages
// from bots and webhooks are ignored.
func (b *Bot) handleGuildMessage(event *events.GuildMessageCreate) {
	msg := event.Message
	if msg.Author.Bot || msg.WebhookID != nil {
		return
	}

	message := commands.Message{
		GuildID:   event.GuildID,
		ChannelID: event.ChannelID,
		MessageID: msg.ID,
		AuthorID:  msg.Author.ID,
		Content:   msg.Content,
	}

	b.pool.Go(func() {
		b.processMessage(message)
	})
}

// processMessage runs a single command and sends its reply.
func (b *Bot) processMessage(message commands.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	start := time.Now()
	handled := false

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic in command handler",
				zap.Uint64("guild_id", uint64(message.GuildID)),
				zap.Any("panic", r))
			b.sendReply(message, commands.Reply{Content: "❌ Internal error. Please report this to an administrator."})
			return
		}

		if handled {
			b.logger.Debug("Command handled",
				zap.Uint64("guild_id", uint64(message.GuildID)),
				zap.Duration("duration", time.Since(start)))
		}
	}()

	reply, ok := b.router.Handle(ctx, message)
	if !ok {
		return
	}

	handled = true
	b.sendReply(message, reply)
}

// sendReply posts reply in the channel of message. Replies with a lifetime
// are removed once it has passed.
func (b *Bot) sendReply(message commands.Message, reply commands.Reply) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if reply.Embed != nil {
		if err := b.gateway.SendEmbed(ctx, message.ChannelID, *reply.Embed); err != nil {
			b.logger.Error("Failed to send reply embed",
				zap.Uint64("channel_id", uint64(message.ChannelID)),
				zap.Error(err))
		}
		return
	}

	replyID, err := b.gateway.SendMessage(ctx, message.ChannelID, message.MessageID, reply.Content)
	if err != nil {
		b.logger.Error("Failed to send reply",
			zap.Uint64("channel_id", uint64(message.ChannelID)),
			zap.Error(err))
		return
	}

	if reply.DeleteAfter > 0 {
		time.AfterFunc(reply.DeleteAfter, func() {
			b.deleteReply(message.ChannelID, replyID)
		})
	}
}

func (b *Bot) deleteReply(channelID, messageID snowflake.ID) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if err := b.gateway.DeleteMessage(ctx, channelID, messageID); err != nil {
		b.logger.Debug("Failed to delete reply",
			zap.Uint64("channel_id", uint64(channelID)),
			zap.Uint64("message_id", uint64(messageID)),
			zap.Error(err))
	}
}

// handleMemberJoin hands a join event to the member handler.
func (b *Bot) handleMemberJoin(event *events.GuildMemberJoin) {
	b.pool.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in member join handler", zap.Any("panic", r))
			}
		}()

		b.members.OnGuildMemberJoin(event)
	})
}
