package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/authz"
	"github.com/robalyx/sentinel/internal/guildconfig"
	"github.com/robalyx/sentinel/internal/moderation"
)

const (
	invalidRole    = "❌ Invalid role. Mention it or use its ID."
	invalidChannel = "❌ Invalid channel. Mention it or use its ID."
)

// setupOrder is the order subcommands are listed in the setup help.
var setupOrder = []string{
	"show", "setrules",
	"setadmin", "addadmin", "deladmin",
	"setmod", "addmod", "delmod",
	"setwelcome", "clearwelcome",
	"setmodlog", "clearmodlog",
	"setautorole", "clearautorole",
}

func (r *Router) setupCommands() map[string]command {
	return map[string]command{
		"show":     {"setup show", "Show the current setup.", authz.AdminOrOwner, r.setupShow},
		"setrules": {"setup setrules <channel>", "Set the rules channel.", authz.ModeratorOrHigher, r.setChannel(guildconfig.ChannelRules)},

		"setadmin": {"setup setadmin <role...>", "Replace the Admin roles.", authz.AdminOrOwner, r.setRoles(guildconfig.RoleAdmin)},
		"addadmin": {"setup addadmin <role>", "Add an Admin role.", authz.AdminOrOwner, r.addConfigRole(guildconfig.RoleAdmin)},
		"deladmin": {"setup deladmin <role>", "Remove an Admin role.", authz.AdminOrOwner, r.removeConfigRole(guildconfig.RoleAdmin)},
		"setmod":   {"setup setmod <role...>", "Replace the Moderator roles.", authz.AdminOrOwner, r.setRoles(guildconfig.RoleMod)},
		"addmod":   {"setup addmod <role>", "Add a Moderator role.", authz.AdminOrOwner, r.addConfigRole(guildconfig.RoleMod)},
		"delmod":   {"setup delmod <role>", "Remove a Moderator role.", authz.AdminOrOwner, r.removeConfigRole(guildconfig.RoleMod)},

		"setwelcome":   {"setup setwelcome <channel>", "Set the welcome channel.", authz.AdminOrOwner, r.setChannel(guildconfig.ChannelWelcome)},
		"clearwelcome": {"setup clearwelcome", "Clear the welcome channel.", authz.AdminOrOwner, r.clearChannel(guildconfig.ChannelWelcome)},
		"setmodlog":    {"setup setmodlog <channel>", "Set the mod-log channel.", authz.AdminOrOwner, r.setChannel(guildconfig.ChannelLog)},
		"clearmodlog":  {"setup clearmodlog", "Clear the mod-log channel.", authz.AdminOrOwner, r.clearChannel(guildconfig.ChannelLog)},

		"setautorole":   {"setup setautorole <role>", "Set the role given to new members.", authz.AdminOrOwner, r.setAutoRole},
		"clearautorole": {"setup clearautorole", "Stop giving a role to new members.", authz.AdminOrOwner, r.clearAutoRole},
	}
}

// runSetup dispatches a setup subcommand. Unknown or missing subcommands
// show the setup help.
func (r *Router) runSetup(ctx context.Context, inv *Invocation) Reply {
	var (
		name string
		sub  command
		ok   bool
	)
	if len(inv.Args) > 0 {
		name = strings.ToLower(inv.Args[0])
		sub, ok = r.setup[name]
	}

	if !ok {
		if !r.allowed(inv, authz.AdminOrOwner) {
			return Reply{Content: "❌ You don't have permission."}
		}
		return r.setupHelp()
	}

	if !r.allowed(inv, sub.minimum) {
		return Reply{Content: "❌ You don't have permission."}
	}

	inv.Sub = name
	inv.Args = inv.Args[1:]
	return sub.run(ctx, inv)
}

func (r *Router) setupHelp() Reply {
	var b strings.Builder
	b.WriteString("**Server Setup Commands:**\n")
	for _, name := range setupOrder {
		cmd := r.setup[name]
		fmt.Fprintf(&b, "`%s%s` %s\n", r.prefix, cmd.usage, cmd.description)
	}

	return Reply{Content: strings.TrimSuffix(b.String(), "\n")}
}

func (r *Router) setupShow(_ context.Context, inv *Invocation) Reply {
	cfg := r.store.Get(inv.GuildID)

	var b strings.Builder
	b.WriteString("**Server Setup:**\n")
	fmt.Fprintf(&b, "Admin roles: %s\n", formatRoles(cfg.RoleIDs(guildconfig.RoleAdmin)))
	fmt.Fprintf(&b, "Mod roles: %s\n", formatRoles(cfg.RoleIDs(guildconfig.RoleMod)))
	fmt.Fprintf(&b, "Rules channel: %s\n", formatChannel(cfg.ChannelID(guildconfig.ChannelRules)))
	fmt.Fprintf(&b, "Welcome channel: %s\n", formatChannel(cfg.ChannelID(guildconfig.ChannelWelcome)))
	fmt.Fprintf(&b, "Mod-log channel: %s\n", formatChannel(cfg.ChannelID(guildconfig.ChannelLog)))
	fmt.Fprintf(&b, "Auto-role: %s", formatRole(cfg.AutoRoleID))

	return Reply{Content: b.String()}
}

func (r *Router) setRoles(field guildconfig.RoleField) handlerFunc {
	return func(ctx context.Context, inv *Invocation) Reply {
		if len(inv.Args) == 0 {
			return r.setupUsage(inv)
		}

		ids := make([]snowflake.ID, 0, len(inv.Args))
		for _, arg := range inv.Args {
			id, ok := ParseRoleID(arg)
			if !ok {
				return Reply{Content: invalidRole}
			}
			ids = append(ids, id)
		}

		if err := r.store.SetRoleIDs(ctx, inv.GuildID, field, ids); err != nil {
			return r.saveFailed(inv, err)
		}

		return Reply{Content: fmt.Sprintf("✅ %s roles set to: %s", roleLabel(field), formatRoles(ids))}
	}
}

func (r *Router) addConfigRole(field guildconfig.RoleField) handlerFunc {
	return func(ctx context.Context, inv *Invocation) Reply {
		roleID, reply, ok := r.singleRole(inv)
		if !ok {
			return reply
		}

		added, err := r.store.AddRoleID(ctx, inv.GuildID, field, roleID)
		if err != nil {
			return r.saveFailed(inv, err)
		}
		if !added {
			return Reply{Content: fmt.Sprintf("⚠️ %s is already a %s role.", roleMention(roleID), strings.ToLower(roleLabel(field)))}
		}

		return Reply{Content: fmt.Sprintf("✅ Added %s role: %s", strings.ToLower(roleLabel(field)), roleMention(roleID))}
	}
}

func (r *Router) removeConfigRole(field guildconfig.RoleField) handlerFunc {
	return func(ctx context.Context, inv *Invocation) Reply {
		roleID, reply, ok := r.singleRole(inv)
		if !ok {
			return reply
		}

		removed, err := r.store.RemoveRoleID(ctx, inv.GuildID, field, roleID)
		if err != nil {
			return r.saveFailed(inv, err)
		}
		if !removed {
			return Reply{Content: fmt.Sprintf("⚠️ %s is not a %s role.", roleMention(roleID), strings.ToLower(roleLabel(field)))}
		}

		return Reply{Content: fmt.Sprintf("✅ Removed %s role: %s", strings.ToLower(roleLabel(field)), roleMention(roleID))}
	}
}

func (r *Router) setChannel(field guildconfig.ChannelField) handlerFunc {
	return func(ctx context.Context, inv *Invocation) Reply {
		if len(inv.Args) != 1 {
			return r.setupUsage(inv)
		}

		channelID, ok := ParseChannelID(inv.Args[0])
		if !ok {
			return Reply{Content: invalidChannel}
		}

		if err := r.store.SetChannelID(ctx, inv.GuildID, field, channelID); err != nil {
			return r.saveFailed(inv, err)
		}

		if field == guildconfig.ChannelRules {
			return Reply{Content: "✅ Rules channel set to " + channelMention(channelID)}
		}

		return Reply{Content: fmt.Sprintf("✅ %s channel set to: %s", channelLabel(field), channelMention(channelID))}
	}
}

func (r *Router) clearChannel(field guildconfig.ChannelField) handlerFunc {
	return func(ctx context.Context, inv *Invocation) Reply {
		cleared, err := r.store.ClearChannelID(ctx, inv.GuildID, field)
		if err != nil {
			return r.saveFailed(inv, err)
		}
		if !cleared {
			return Reply{Content: fmt.Sprintf("⚠️ No %s channel is set.", strings.ToLower(channelLabel(field)))}
		}

		return Reply{Content: fmt.Sprintf("✅ %s channel cleared.", channelLabel(field))}
	}
}

func (r *Router) setAutoRole(ctx context.Context, inv *Invocation) Reply {
	roleID, reply, ok := r.singleRole(inv)
	if !ok {
		return reply
	}

	if err := r.store.SetAutoRoleID(ctx, inv.GuildID, roleID); err != nil {
		return r.saveFailed(inv, err)
	}

	return Reply{Content: "✅ Auto-role set to: " + roleMention(roleID)}
}

func (r *Router) clearAutoRole(ctx context.Context, inv *Invocation) Reply {
	cleared, err := r.store.ClearAutoRoleID(ctx, inv.GuildID)
	if err != nil {
		return r.saveFailed(inv, err)
	}
	if !cleared {
		return Reply{Content: "⚠️ No auto-role is set."}
	}

	return Reply{Content: "✅ Auto-role cleared."}
}

// legacyAddRole adds a tier role, refusing ids that are already present.
func (r *Router) legacyAddRole(field guildconfig.RoleField) handlerFunc {
	return func(ctx context.Context, inv *Invocation) Reply {
		if len(inv.Args) != 1 {
			return r.usage(inv.Name)
		}

		roleID, ok := ParseRoleID(inv.Args[0])
		if !ok {
			return Reply{Content: invalidRole}
		}

		added, err := r.store.AddRoleID(ctx, inv.GuildID, field, roleID)
		if err != nil {
			return r.saveFailed(inv, err)
		}
		if !added {
			return Reply{Content: fmt.Sprintf("⚠️ This role is already set as %s.", field)}
		}

		return Reply{Content: fmt.Sprintf("✅ %s role added: %s", field, roleMention(roleID))}
	}
}

func (r *Router) setHelpAccess(ctx context.Context, inv *Invocation) Reply {
	if len(inv.Args) != 1 {
		return r.usage(inv.Name)
	}

	roleID, ok := ParseRoleID(inv.Args[0])
	if !ok {
		return Reply{Content: invalidRole}
	}

	added, err := r.store.AddRoleID(ctx, inv.GuildID, guildconfig.RoleHelp, roleID)
	if err != nil {
		return r.saveFailed(inv, err)
	}
	if !added {
		return Reply{Content: "⚠️ This role already has help access."}
	}

	return Reply{Content: "📘 Help access granted to: " + roleMention(roleID)}
}

func (r *Router) viewRoles(_ context.Context, inv *Invocation) Reply {
	cfg := r.store.Get(inv.GuildID)

	return Reply{Embed: &moderation.Embed{
		Title: "🛡️ Server Role Configuration",
		Color: 0x2ECC71,
		Fields: []moderation.EmbedField{
			{Name: "Admin Roles", Value: formatRoles(cfg.RoleIDs(guildconfig.RoleAdmin))},
			{Name: "Moderator Roles", Value: formatRoles(cfg.RoleIDs(guildconfig.RoleMod))},
			{Name: "Help Access Roles", Value: formatRoles(cfg.RoleIDs(guildconfig.RoleHelp))},
		},
	}}
}

func (r *Router) setLogChannel(ctx context.Context, inv *Invocation) Reply {
	if len(inv.Args) != 1 {
		return r.usage(inv.Name)
	}

	channelID, ok := ParseChannelID(inv.Args[0])
	if !ok {
		return Reply{Content: invalidChannel}
	}

	if err := r.store.SetChannelID(ctx, inv.GuildID, guildconfig.ChannelLog, channelID); err != nil {
		return r.saveFailed(inv, err)
	}

	return Reply{Content: "✅ Moderation log channel set to " + channelMention(channelID)}
}

func (r *Router) showLogChannel(ctx context.Context, inv *Invocation) Reply {
	channelID := r.store.Get(inv.GuildID).ChannelID(guildconfig.ChannelLog)
	if channelID == nil {
		return Reply{Content: "❌ No log channel has been set yet."}
	}

	exists, err := r.channels.ChannelExists(ctx, *channelID)
	if err != nil {
		return Reply{Content: "❌ Couldn't check the log channel. Try again later."}
	}
	if !exists {
		return Reply{Content: "❌ The previously set log channel no longer exists."}
	}

	return Reply{Content: "📌 Moderation log channel: " + channelMention(*channelID)}
}

func (r *Router) resetConfig(ctx context.Context, inv *Invocation) Reply {
	reset, err := r.store.Reset(ctx, inv.GuildID)
	if err != nil {
		return r.saveFailed(inv, err)
	}
	if !reset {
		return Reply{Content: "❌ No configuration found to reset."}
	}

	return Reply{Content: "🔄 Server configuration has been reset successfully!"}
}

// singleRole parses the only argument of a setup subcommand as a role.
func (r *Router) singleRole(inv *Invocation) (snowflake.ID, Reply, bool) {
	if len(inv.Args) != 1 {
		return 0, r.setupUsage(inv), false
	}

	roleID, ok := ParseRoleID(inv.Args[0])
	if !ok {
		return 0, Reply{Content: invalidRole}, false
	}

	return roleID, Reply{}, true
}

// setupUsage returns the usage of the setup subcommand being run.
func (r *Router) setupUsage(inv *Invocation) Reply {
	cmd, ok := r.setup[inv.Sub]
	if !ok {
		return r.setupHelp()
	}

	return Reply{Content: fmt.Sprintf("❌ Usage: `%s%s`", r.prefix, cmd.usage)}
}

// roleLabel is the short label used in setup replies.
func roleLabel(field guildconfig.RoleField) string {
	if field == guildconfig.RoleMod {
		return "Mod"
	}

	return "Admin"
}

// channelLabel is the short label used in setup replies.
func channelLabel(field guildconfig.ChannelField) string {
	if field == guildconfig.ChannelLog {
		return "Mod-log"
	}

	return field.String()
}

func formatRoles(ids []snowflake.ID) string {
	if len(ids) == 0 {
		return "None"
	}

	mentions := make([]string, len(ids))
	for i, id := range ids {
		mentions[i] = roleMention(id)
	}

	return strings.Join(mentions, ", ")
}

func formatRole(id *snowflake.ID) string {
	if id == nil {
		return "None"
	}

	return roleMention(*id)
}

func formatChannel(id *snowflake.ID) string {
	if id == nil {
		return "None"
	}

	return channelMention(*id)
}
