// Package commands parses prefixed chat commands and routes them to the
// moderation pipeline and the guild configuration store.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/authz"
	"github.com/robalyx/sentinel/internal/guildconfig"
	"github.com/robalyx/sentinel/internal/moderation"
	"go.uber.org/zap"
)

// ClearReplyLifetime is how long a clear confirmation stays visible.
const ClearReplyLifetime = 5 * time.Second

// Message is an incoming guild message.
type Message struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	MessageID snowflake.ID
	AuthorID  snowflake.ID
	Content   string
}

// Invocation is a parsed command together with its resolved actor. Sub is
// set for setup subcommands.
type Invocation struct {
	Message
	Name  string
	Sub   string
	Args  []string
	Actor moderation.Actor
}

// Reply is what the bot sends back for an invocation. A zero DeleteAfter
// keeps the reply.
type Reply struct {
	Content     string
	Embed       *moderation.Embed
	DeleteAfter time.Duration
}

// ChannelLookup reports whether a channel still exists.
type ChannelLookup interface {
	ChannelExists(ctx context.Context, channelID snowflake.ID) (bool, error)
}

type handlerFunc func(ctx context.Context, inv *Invocation) Reply

// command is a routed command. Handlers with a minimum tier above TierNone
// are guarded by the router; moderation handlers are guarded by the pipeline.
type command struct {
	usage       string
	description string
	minimum     authz.Tier
	run         handlerFunc
}

// Router dispatches commands.
type Router struct {
	prefix   string
	pipeline *moderation.Pipeline
	store    *guildconfig.Store
	channels ChannelLookup
	logger   *zap.Logger
	commands map[string]command
	setup    map[string]command
}

// NewRouter creates a Router and registers every command.
func NewRouter(
	prefix string,
	pipeline *moderation.Pipeline,
	store *guildconfig.Store,
	channels ChannelLookup,
	logger *zap.Logger,
) *Router {
	r := &Router{
		prefix:   prefix,
		pipeline: pipeline,
		store:    store,
		channels: channels,
		logger:   logger.Named("commands"),
	}

	r.commands = map[string]command{
		"ban":        {"ban <user> [reason]", "Ban a member or a user by id.", authz.TierNone, r.ban},
		"kick":       {"kick <user> [reason]", "Kick a member.", authz.TierNone, r.kick},
		"unban":      {"unban <user id> [reason]", "Lift a ban.", authz.TierNone, r.unban},
		"clear":      {"clear [count] | clear <user> [count]", "Delete recent messages.", authz.TierNone, r.clear},
		"addrole":    {"addrole <user> <role>", "Give a role to a member.", authz.TierNone, r.addRole},
		"removerole": {"removerole <user> <role>", "Take a role from a member.", authz.TierNone, r.removeRole},
		"setup":      {"setup [subcommand]", "Configure this server.", authz.TierNone, r.runSetup},

		"setadminrole":  {"setadminrole <role>", "Add an Admin role.", authz.AdminOrOwner, r.legacyAddRole(guildconfig.RoleAdmin)},
		"setmodrole":    {"setmodrole <role>", "Add a Moderator role.", authz.AdminOrOwner, r.legacyAddRole(guildconfig.RoleMod)},
		"sethelpaccess": {"sethelpaccess <role>", "Allow a role to use help.", authz.AdminOrOwner, r.setHelpAccess},
		"viewroles":     {"viewroles", "Show the configured role sets.", authz.AdminOrOwner, r.viewRoles},
		"setlogchannel": {"setlogchannel <channel>", "Set the moderation log channel.", authz.AdminOrOwner, r.setLogChannel},
		"logchannel":    {"logchannel", "Show the moderation log channel.", authz.AdminOrOwner, r.showLogChannel},
		"resetconfig":   {"resetconfig", "Reset this server's configuration.", authz.AdminOrOwner, r.resetConfig},

		"help": {"help", "Show this list.", authz.TierNone, r.help},
	}

	r.setup = r.setupCommands()

	return r
}

// Handle parses and runs msg. It reports false when msg is not a known command.
func (r *Router) Handle(ctx context.Context, msg Message) (Reply, bool) {
	name, args, ok := ParseCommand(msg.Content, r.prefix)
	if !ok {
		return Reply{}, false
	}

	cmd, ok := r.commands[name]
	if !ok {
		return Reply{}, false
	}

	actor, err := r.pipeline.Resolver().ResolveActor(ctx, msg.GuildID, msg.AuthorID)
	if err != nil {
		r.logger.Warn("Failed to resolve command author",
			zap.Uint64("guild_id", uint64(msg.GuildID)),
			zap.Uint64("user_id", uint64(msg.AuthorID)),
			zap.Error(err))
		return Reply{Content: "❌ Couldn't look up your membership. Try again later."}, true
	}

	inv := &Invocation{Message: msg, Name: name, Args: args, Actor: actor}

	if !r.allowed(inv, cmd.minimum) {
		return Reply{Content: "❌ You don't have permission."}, true
	}

	r.logger.Debug("Running command",
		zap.String("command", name),
		zap.Uint64("guild_id", uint64(msg.GuildID)),
		zap.Uint64("user_id", uint64(msg.AuthorID)))

	return cmd.run(ctx, inv), true
}

// allowed checks the invoking member against minimum.
func (r *Router) allowed(inv *Invocation, minimum authz.Tier) bool {
	if minimum == authz.TierNone {
		return true
	}

	return authz.Require(r.pipeline.Tier(inv.GuildID, inv.Actor), minimum)
}

// usage returns the usage reply of a top-level command.
func (r *Router) usage(name string) Reply {
	return Reply{Content: fmt.Sprintf("❌ Usage: `%s%s`", r.prefix, r.commands[name].usage)}
}

// help lists every command. Once help roles are configured only those
// roles and admins can see the list.
func (r *Router) help(_ context.Context, inv *Invocation) Reply {
	if !authz.CanViewHelp(inv.Actor.Principal(), r.store.Get(inv.GuildID)) {
		return Reply{Content: "❌ You don't have permission."}
	}

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("**Commands:**\n")
	for _, name := range names {
		cmd := r.commands[name]
		fmt.Fprintf(&b, "`%s%s` %s\n", r.prefix, cmd.usage, cmd.description)
	}

	return Reply{Content: strings.TrimSuffix(b.String(), "\n")}
}

// saveFailed logs a configuration write failure and returns the user reply.
func (r *Router) saveFailed(inv *Invocation, err error) Reply {
	r.logger.Error("Failed to save guild configuration",
		zap.String("command", inv.Name),
		zap.Uint64("guild_id", uint64(inv.GuildID)),
		zap.Error(err))

	return Reply{Content: "❌ Failed to save the configuration. Try again later."}
}
