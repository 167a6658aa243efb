package guildconfig

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
)

// documentID decodes an id stored either as a JSON string or a JSON number.
// Settings files written by the previous bot store plain numbers.
type documentID snowflake.ID

func (id *documentID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", data, err)
	}

	*id = documentID(v)

	return nil
}

// storedGuild is the decode shape of one guild entry. The legacy keys are
// read so older files keep their roles; they are never written back.
type storedGuild struct {
	AdminRoleIDs     []documentID `json:"admin_role_ids"`
	ModRoleIDs       []documentID `json:"mod_role_ids"`
	HelpRoleIDs      []documentID `json:"help_role_ids"`
	LogChannelID     *documentID  `json:"log_channel_id"`
	WelcomeChannelID *documentID  `json:"welcome_channel_id"`
	RulesChannelID   *documentID  `json:"rules_channel_id"`
	AutoRoleID       *documentID  `json:"auto_role_id"`

	LegacyAdminRoles []documentID `json:"admin_roles"`
	LegacyModRoles   []documentID `json:"mod_roles"`
	LegacyHelpRoles  []documentID `json:"help_roles"`
	LegacyLogChannel *documentID  `json:"log_channel"`
}

// decodeDocument parses the settings document. Duplicate role ids are
// dropped and zero ids are treated as unset.
func decodeDocument(data []byte) (map[string]*GuildAuthConfig, error) {
	var stored map[string]*storedGuild
	if err := sonic.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	guilds := make(map[string]*GuildAuthConfig, len(stored))
	for key, entry := range stored {
		if _, err := snowflake.Parse(key); err != nil {
			return nil, fmt.Errorf("invalid guild id %q: %w", key, err)
		}

		if entry == nil {
			guilds[key] = NewGuildAuthConfig()
			continue
		}

		logChannel := entry.LogChannelID
		if logChannel == nil {
			logChannel = entry.LegacyLogChannel
		}

		guilds[key] = &GuildAuthConfig{
			AdminRoleIDs:     toIDs(entry.AdminRoleIDs, entry.LegacyAdminRoles),
			ModRoleIDs:       toIDs(entry.ModRoleIDs, entry.LegacyModRoles),
			HelpRoleIDs:      toIDs(entry.HelpRoleIDs, entry.LegacyHelpRoles),
			LogChannelID:     toID(logChannel),
			WelcomeChannelID: toID(entry.WelcomeChannelID),
			RulesChannelID:   toID(entry.RulesChannelID),
			AutoRoleID:       toID(entry.AutoRoleID),
		}
	}

	return guilds, nil
}

func toIDs(sets ...[]documentID) []snowflake.ID {
	out := make([]snowflake.ID, 0)
	for _, set := range sets {
		for _, id := range set {
			if id != 0 {
				out = append(out, snowflake.ID(id))
			}
		}
	}

	return dedupe(out)
}

func toID(id *documentID) *snowflake.ID {
	if id == nil || *id == 0 {
		return nil
	}

	v := snowflake.ID(*id)

	return &v
}
