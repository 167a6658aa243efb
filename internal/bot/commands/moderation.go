package commands

import (
	"context"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/moderation"
)

// defaultClearCount is used when clear is given no count.
const defaultClearCount = 10

const invalidUser = "❌ Invalid user. Mention them or use their ID."

func (r *Router) ban(ctx context.Context, inv *Invocation) Reply {
	req, reply, ok := r.punishRequest(inv)
	if !ok {
		return reply
	}

	return Reply{Content: r.pipeline.Ban(ctx, req).Message()}
}

func (r *Router) kick(ctx context.Context, inv *Invocation) Reply {
	req, reply, ok := r.punishRequest(inv)
	if !ok {
		return reply
	}

	return Reply{Content: r.pipeline.Kick(ctx, req).Message()}
}

// punishRequest builds a ban or kick request from "<user> [reason...]".
func (r *Router) punishRequest(inv *Invocation) (moderation.Request, Reply, bool) {
	if len(inv.Args) == 0 {
		return moderation.Request{}, r.usage(inv.Name), false
	}

	userID, ok := ParseUserID(inv.Args[0])
	if !ok {
		return moderation.Request{}, Reply{Content: invalidUser}, false
	}

	return moderation.Request{
		GuildID: inv.GuildID,
		Actor:   inv.Actor,
		Target:  moderation.RefID(userID),
		Reason:  strings.Join(inv.Args[1:], " "),
	}, Reply{}, true
}

func (r *Router) unban(ctx context.Context, inv *Invocation) Reply {
	if len(inv.Args) == 0 {
		return r.usage(inv.Name)
	}

	userID, ok := ParseUserID(inv.Args[0])
	if !ok {
		return Reply{Content: "❌ Invalid user ID."}
	}

	outcome := r.pipeline.Unban(ctx, moderation.UnbanRequest{
		GuildID: inv.GuildID,
		Actor:   inv.Actor,
		UserID:  userID,
		Reason:  strings.Join(inv.Args[1:], " "),
	})

	return Reply{Content: outcome.Message()}
}

// clear accepts "[count]", "<user>" or "<user> [count]".
func (r *Router) clear(ctx context.Context, inv *Invocation) Reply {
	req := moderation.ClearRequest{
		GuildID:   inv.GuildID,
		ChannelID: inv.ChannelID,
		Actor:     inv.Actor,
		Count:     defaultClearCount,
		Exclude:   []snowflake.ID{inv.MessageID},
	}

	args := inv.Args
	if len(args) > 0 {
		if userID, ok := ParseUserID(args[0]); ok && strings.HasPrefix(args[0], "<@") {
			ref := moderation.RefID(userID)
			req.Author = &ref
			args = args[1:]
		}
	}

	switch len(args) {
	case 0:
	case 1:
		count, ok := ParseCount(args[0])
		if !ok {
			return r.usage(inv.Name)
		}
		req.Count = count
	default:
		return r.usage(inv.Name)
	}

	outcome := r.pipeline.Clear(ctx, req)
	if !outcome.Executed() {
		return Reply{Content: outcome.Message()}
	}

	return Reply{Content: outcome.Message(), DeleteAfter: ClearReplyLifetime}
}

func (r *Router) addRole(ctx context.Context, inv *Invocation) Reply {
	req, reply, ok := r.roleRequest(inv)
	if !ok {
		return reply
	}

	return Reply{Content: r.pipeline.GrantRole(ctx, req).Message()}
}

func (r *Router) removeRole(ctx context.Context, inv *Invocation) Reply {
	req, reply, ok := r.roleRequest(inv)
	if !ok {
		return reply
	}

	return Reply{Content: r.pipeline.RevokeRole(ctx, req).Message()}
}

// roleRequest builds a role request from "<user> <role>".
func (r *Router) roleRequest(inv *Invocation) (moderation.RoleRequest, Reply, bool) {
	if len(inv.Args) != 2 {
		return moderation.RoleRequest{}, r.usage(inv.Name), false
	}

	userID, ok := ParseUserID(inv.Args[0])
	if !ok {
		return moderation.RoleRequest{}, Reply{Content: invalidUser}, false
	}

	roleID, ok := ParseRoleID(inv.Args[1])
	if !ok {
		return moderation.RoleRequest{}, Reply{Content: invalidRole}, false
	}

	return moderation.RoleRequest{
		GuildID: inv.GuildID,
		Actor:   inv.Actor,
		Target:  moderation.RefID(userID),
		RoleID:  roleID,
	}, Reply{}, true
}
