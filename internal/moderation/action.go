package moderation

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ActionKind is a moderation action.
type ActionKind int

const (
	ActionBan ActionKind = iota
	ActionKick
	ActionUnban
	ActionClear
	ActionGrantRole
	ActionRevokeRole
)

// String returns the command verb of the action.
func (k ActionKind) String() string {
	switch k {
	case ActionBan:
		return "ban"
	case ActionKick:
		return "kick"
	case ActionUnban:
		return "unban"
	case ActionClear:
		return "clear"
	case ActionGrantRole:
		return "grant role"
	case ActionRevokeRole:
		return "revoke role"
	default:
		return "unknown"
	}
}

// PastTense returns the verb used in confirmations and notices.
func (k ActionKind) PastTense() string {
	switch k {
	case ActionBan:
		return "banned"
	case ActionKick:
		return "kicked"
	case ActionUnban:
		return "unbanned"
	case ActionClear:
		return "cleared"
	case ActionGrantRole:
		return "granted"
	case ActionRevokeRole:
		return "revoked"
	default:
		return "unknown"
	}
}

// Title returns the audit embed title, e.g. "Member Banned".
func (k ActionKind) Title() string {
	var subject string

	switch k {
	case ActionBan, ActionKick:
		subject = "member"
	case ActionUnban:
		subject = "user"
	case ActionClear:
		subject = "messages"
	case ActionGrantRole, ActionRevokeRole:
		subject = "role"
	}

	// Casers hold state and are not shared across goroutines
	return cases.Title(language.English).String(subject + " " + k.PastTense())
}

// Color returns the audit embed color.
func (k ActionKind) Color() int {
	switch k {
	case ActionBan:
		return 0xED4245
	case ActionKick:
		return 0xE67E22
	case ActionUnban:
		return 0x57F287
	case ActionClear:
		return 0xFEE75C
	default:
		return 0x5865F2
	}
}

// memberPermission is the platform permission an action needs.
func (k ActionKind) memberPermission() string {
	switch k {
	case ActionClear:
		return "delete messages"
	case ActionGrantRole, ActionRevokeRole:
		return "manage roles"
	case ActionUnban:
		return "ban members"
	default:
		return k.String() + " members"
	}
}
