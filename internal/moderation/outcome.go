package moderation

import (
	"errors"
	"fmt"
	"strings"
)

// Stage is a step of a pipeline invocation.
type Stage int

const (
	StageReceived Stage = iota
	StageAuthorizing
	StageValidating
	StageNotifying
	StageExecuting
	StageAuditEmitting
	StageTerminal
)

// String returns the name of the stage.
func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageAuthorizing:
		return "authorizing"
	case StageValidating:
		return "validating"
	case StageNotifying:
		return "notifying"
	case StageExecuting:
		return "executing"
	case StageAuditEmitting:
		return "audit_emitting"
	case StageTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Status is the final state of an invocation.
type Status int

const (
	// StatusExecuted means the action was performed.
	StatusExecuted Status = iota
	// StatusDenied means a check rejected the action before any mutation.
	StatusDenied
	// StatusAborted means the platform refused or failed the action.
	StatusAborted
)

// String returns the name of the status.
func (s Status) String() string {
	switch s {
	case StatusExecuted:
		return "executed"
	case StatusDenied:
		return "denied"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Outcome is the result of a pipeline invocation. Stage is where the
// invocation stopped; it is StageTerminal for executed actions.
type Outcome struct {
	Action  ActionKind
	Status  Status
	Stage   Stage
	Err     error
	Record  *AuditRecord
	Audited bool
}

// Executed reports whether the action was performed.
func (o Outcome) Executed() bool {
	return o.Status == StatusExecuted
}

// Kind returns the error kind of a denied or aborted outcome.
func (o Outcome) Kind() Kind {
	return KindOf(o.Err)
}

// Message renders the reply shown to the invoking member.
func (o Outcome) Message() string {
	if o.Status == StatusExecuted {
		return o.confirmation()
	}

	return o.denial()
}

func (o Outcome) confirmation() string {
	r := o.Record

	switch o.Action {
	case ActionClear:
		if r.AuthorFilter != nil {
			return fmt.Sprintf("🧹 Deleted **%d** messages from **%s**.", r.Count, r.AuthorFilter.Display())
		}

		return fmt.Sprintf("🧹 Deleted **%d** messages.", r.Count)
	case ActionGrantRole:
		return fmt.Sprintf("✅ Added role **%s** to **%s**.", r.Role.Name, r.Target.Display())
	case ActionRevokeRole:
		return fmt.Sprintf("✅ Removed role **%s** from **%s**.", r.Role.Name, r.Target.Display())
	case ActionBan, ActionKick, ActionUnban:
		return fmt.Sprintf("✅ %s **%s**.\nReason: %s\nBy: %s",
			capitalize(o.Action.PastTense()), r.Target.Display(), r.Reason, r.Actor.Display())
	default:
		return "✅ Done."
	}
}

func (o Outcome) denial() string {
	if o.Action == ActionClear && o.Record != nil {
		return fmt.Sprintf("⚠️ Deleted **%d** messages before a Discord error stopped the rest.", o.Record.Count)
	}

	verb := o.Action.String()
	roleAction := o.Action == ActionGrantRole || o.Action == ActionRevokeRole

	switch err := o.Err; {
	case errors.Is(err, ErrInsufficientPermission):
		return "❌ You don't have permission."
	case errors.Is(err, ErrCannotTargetSelf):
		return fmt.Sprintf("❌ You can't %s yourself.", verb)
	case errors.Is(err, ErrCannotTargetBot):
		return fmt.Sprintf("❌ I can't %s myself.", verb)
	case errors.Is(err, ErrCannotTargetOwner):
		return fmt.Sprintf("❌ You can't %s the server owner.", verb)
	case errors.Is(err, ErrInsufficientRank) && roleAction:
		return "❌ You can't manage a role equal to or higher than your top role."
	case errors.Is(err, ErrInsufficientRank):
		return fmt.Sprintf("❌ You can't %s someone with an equal/higher role than you.", verb)
	case errors.Is(err, ErrBotRankInsufficient) && roleAction:
		return "❌ I can't manage that role (role hierarchy). Move my role higher."
	case errors.Is(err, ErrBotRankInsufficient):
		return fmt.Sprintf("❌ I can't %s that member (role hierarchy). Move my role higher.", verb)
	case errors.Is(err, ErrNotBanned):
		return "❌ That user isn't banned (or wrong ID)."
	case errors.Is(err, ErrTargetNotInGuild):
		return "❌ That user is not in this server."
	case errors.Is(err, ErrTargetNotFound):
		return "❌ User not found."
	case errors.Is(err, ErrCountTooLow):
		return "❌ You must delete at least 1 message."
	case errors.Is(err, ErrCountTooHigh):
		return fmt.Sprintf("❌ Max allowed is %d messages at a time.", MaxClearCount)
	case errors.Is(err, ErrRoleNotFound):
		return "❌ Role not found."
	case errors.Is(err, ErrRoleAlreadyAssigned):
		return "⚠️ That member already has that role."
	case errors.Is(err, ErrRoleNotAssigned):
		return "⚠️ That member doesn't have that role."
	case errors.Is(err, ErrGatewayForbidden):
		return fmt.Sprintf("❌ I don't have permission to %s.", o.Action.memberPermission())
	case errors.Is(err, ErrGatewayNotFound):
		return "❌ That user or role no longer exists."
	case o.Action == ActionClear:
		return "❌ Failed to delete messages (Discord error)."
	default:
		return fmt.Sprintf("❌ %s failed due to a Discord error.", capitalize(verb))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
