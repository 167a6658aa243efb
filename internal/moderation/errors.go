package moderation

import (
	"errors"

	"github.com/robalyx/sentinel/internal/guildconfig"
)

var (
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrCannotTargetSelf       = errors.New("cannot target self")
	ErrCannotTargetBot        = errors.New("cannot target the bot")
	ErrCannotTargetOwner      = errors.New("cannot target the guild owner")
	ErrInsufficientRank       = errors.New("target rank is not below actor rank")
	ErrBotRankInsufficient    = errors.New("target rank is not below bot rank")
	ErrTargetNotFound         = errors.New("target not found")
	ErrTargetNotInGuild       = errors.New("target is not a guild member")
	ErrNotBanned              = errors.New("user is not banned")
	ErrCountTooLow            = errors.New("message count below minimum")
	ErrCountTooHigh           = errors.New("message count above maximum")
	ErrRoleNotFound           = errors.New("role not found")
	ErrRoleAlreadyAssigned    = errors.New("member already has role")
	ErrRoleNotAssigned        = errors.New("member does not have role")

	// Gateway failures. Adapters wrap platform errors with one of these.
	ErrGatewayForbidden = errors.New("gateway: forbidden")
	ErrGatewayNotFound  = errors.New("gateway: not found")
	ErrGatewayTransient = errors.New("gateway: transient failure")
)

// Kind classifies an error for reporting.
type Kind int

const (
	KindAuthorizationDenied Kind = iota
	KindValidationFailed
	KindTargetNotFound
	KindGatewayForbidden
	KindGatewayTransient
	KindConfigIOFailure
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindAuthorizationDenied:
		return "AuthorizationDenied"
	case KindValidationFailed:
		return "ValidationFailed"
	case KindTargetNotFound:
		return "TargetNotFound"
	case KindGatewayForbidden:
		return "GatewayForbidden"
	case KindGatewayTransient:
		return "GatewayTransient"
	case KindConfigIOFailure:
		return "ConfigIOFailure"
	default:
		return "Unknown"
	}
}

// KindOf maps err to its kind. Unrecognised errors are treated as transient
// platform failures.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInsufficientPermission):
		return KindAuthorizationDenied
	case errors.Is(err, ErrTargetNotFound),
		errors.Is(err, ErrTargetNotInGuild),
		errors.Is(err, ErrNotBanned),
		errors.Is(err, ErrRoleNotFound),
		errors.Is(err, ErrGatewayNotFound):
		return KindTargetNotFound
	case errors.Is(err, ErrCannotTargetSelf),
		errors.Is(err, ErrCannotTargetBot),
		errors.Is(err, ErrCannotTargetOwner),
		errors.Is(err, ErrInsufficientRank),
		errors.Is(err, ErrBotRankInsufficient),
		errors.Is(err, ErrCountTooLow),
		errors.Is(err, ErrCountTooHigh),
		errors.Is(err, ErrRoleAlreadyAssigned),
		errors.Is(err, ErrRoleNotAssigned):
		return KindValidationFailed
	case errors.Is(err, ErrGatewayForbidden):
		return KindGatewayForbidden
	case errors.Is(err, guildconfig.ErrPersist):
		return KindConfigIOFailure
	default:
		return KindGatewayTransient
	}
}
