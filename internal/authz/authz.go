// Package authz classifies guild members into authority tiers.
package authz

import (
	"slices"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/guildconfig"
)

// Tier is an ordered authority level.
type Tier int

const (
	TierNone Tier = iota
	TierModerator
	TierAdmin
	TierOwner
)

// Guards used by the command surface.
const (
	AdminOrOwner      = TierAdmin
	ModeratorOrHigher = TierModerator
)

// String returns the display name of the tier.
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "None"
	case TierModerator:
		return "Moderator"
	case TierAdmin:
		return "Admin"
	case TierOwner:
		return "Owner"
	default:
		return "Unknown"
	}
}

// Principal is the identity being classified.
type Principal struct {
	UserID       snowflake.ID
	RoleIDs      []snowflake.ID
	GuildOwnerID snowflake.ID
}

// Classify returns the highest tier the principal holds. A nil config is
// treated as empty.
func Classify(p Principal, cfg *guildconfig.GuildAuthConfig) Tier {
	if p.UserID == p.GuildOwnerID {
		return TierOwner
	}

	if cfg == nil {
		return TierNone
	}

	switch {
	case intersects(p.RoleIDs, cfg.AdminRoleIDs):
		return TierAdmin
	case intersects(p.RoleIDs, cfg.ModRoleIDs):
		return TierModerator
	default:
		return TierNone
	}
}

// Require reports whether tier meets minimum.
func Require(tier, minimum Tier) bool {
	return tier >= minimum
}

// CanViewHelp reports whether the principal may list the commands. An empty
// help role set leaves the list open to everyone.
func CanViewHelp(p Principal, cfg *guildconfig.GuildAuthConfig) bool {
	helpRoles := cfg.RoleIDs(guildconfig.RoleHelp)
	if len(helpRoles) == 0 {
		return true
	}

	return Classify(p, cfg) >= TierAdmin || intersects(p.RoleIDs, helpRoles)
}

func intersects(held, configured []snowflake.ID) bool {
	for _, id := range held {
		if slices.Contains(configured, id) {
			return true
		}
	}

	return false
}
