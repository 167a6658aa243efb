package guildconfig

import (
	"slices"

	"github.com/disgoorg/snowflake/v2"
)

// RoleField selects one of the privileged role sets.
type RoleField int

const (
	RoleAdmin RoleField = iota
	RoleMod
	// RoleHelp restricts the help command. It grants no authority tier.
	RoleHelp
)

// String returns the display name of the role tier.
func (f RoleField) String() string {
	switch f {
	case RoleAdmin:
		return "Admin"
	case RoleMod:
		return "Moderator"
	case RoleHelp:
		return "Help"
	default:
		return "Unknown"
	}
}

// ChannelField selects one of the optional channel settings.
type ChannelField int

const (
	ChannelLog ChannelField = iota
	ChannelWelcome
	ChannelRules
)

// String returns the display name of the channel setting.
func (f ChannelField) String() string {
	switch f {
	case ChannelLog:
		return "Mod log"
	case ChannelWelcome:
		return "Welcome"
	case ChannelRules:
		return "Rules"
	default:
		return "Unknown"
	}
}

// GuildAuthConfig is the persisted configuration of a single guild.
type GuildAuthConfig struct {
	AdminRoleIDs     []snowflake.ID `json:"admin_role_ids"`
	ModRoleIDs       []snowflake.ID `json:"mod_role_ids"`
	HelpRoleIDs      []snowflake.ID `json:"help_role_ids"`
	LogChannelID     *snowflake.ID  `json:"log_channel_id,omitempty"`
	WelcomeChannelID *snowflake.ID  `json:"welcome_channel_id,omitempty"`
	RulesChannelID   *snowflake.ID  `json:"rules_channel_id,omitempty"`
	AutoRoleID       *snowflake.ID  `json:"auto_role_id,omitempty"`
}

// NewGuildAuthConfig returns an empty configuration.
func NewGuildAuthConfig() *GuildAuthConfig {
	return &GuildAuthConfig{
		AdminRoleIDs: []snowflake.ID{},
		ModRoleIDs:   []snowflake.ID{},
		HelpRoleIDs:  []snowflake.ID{},
	}
}

// Clone returns a deep copy.
func (c *GuildAuthConfig) Clone() *GuildAuthConfig {
	if c == nil {
		return NewGuildAuthConfig()
	}

	return &GuildAuthConfig{
		AdminRoleIDs:     append([]snowflake.ID{}, c.AdminRoleIDs...),
		ModRoleIDs:       append([]snowflake.ID{}, c.ModRoleIDs...),
		HelpRoleIDs:      append([]snowflake.ID{}, c.HelpRoleIDs...),
		LogChannelID:     cloneID(c.LogChannelID),
		WelcomeChannelID: cloneID(c.WelcomeChannelID),
		RulesChannelID:   cloneID(c.RulesChannelID),
		AutoRoleID:       cloneID(c.AutoRoleID),
	}
}

// IsZero reports whether nothing is configured.
func (c *GuildAuthConfig) IsZero() bool {
	return c == nil || (len(c.AdminRoleIDs) == 0 &&
		len(c.ModRoleIDs) == 0 &&
		len(c.HelpRoleIDs) == 0 &&
		c.LogChannelID == nil &&
		c.WelcomeChannelID == nil &&
		c.RulesChannelID == nil &&
		c.AutoRoleID == nil)
}

// RoleIDs returns the role set selected by field.
func (c *GuildAuthConfig) RoleIDs(field RoleField) []snowflake.ID {
	if c == nil {
		return nil
	}

	return *c.roleSet(field)
}

// HasRole reports whether roleID is in the set selected by field.
func (c *GuildAuthConfig) HasRole(field RoleField, roleID snowflake.ID) bool {
	return slices.Contains(c.RoleIDs(field), roleID)
}

// ChannelID returns the channel selected by field, or nil when unset.
func (c *GuildAuthConfig) ChannelID(field ChannelField) *snowflake.ID {
	if c == nil {
		return nil
	}

	switch field {
	case ChannelLog:
		return c.LogChannelID
	case ChannelWelcome:
		return c.WelcomeChannelID
	case ChannelRules:
		return c.RulesChannelID
	default:
		return nil
	}
}

func (c *GuildAuthConfig) roleSet(field RoleField) *[]snowflake.ID {
	switch field {
	case RoleAdmin:
		return &c.AdminRoleIDs
	case RoleHelp:
		return &c.HelpRoleIDs
	default:
		return &c.ModRoleIDs
	}
}

func (c *GuildAuthConfig) channelSlot(field ChannelField) **snowflake.ID {
	switch field {
	case ChannelWelcome:
		return &c.WelcomeChannelID
	case ChannelRules:
		return &c.RulesChannelID
	default:
		return &c.LogChannelID
	}
}

func cloneID(id *snowflake.ID) *snowflake.ID {
	if id == nil {
		return nil
	}

	v := *id

	return &v
}
