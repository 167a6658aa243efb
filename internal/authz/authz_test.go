package authz_test

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/authz"
	"github.com/robalyx/sentinel/internal/guildconfig"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cfg := &guildconfig.GuildAuthConfig{
		AdminRoleIDs: []snowflake.ID{100},
		ModRoleIDs:   []snowflake.ID{200},
	}

	tests := []struct {
		name      string
		principal authz.Principal
		cfg       *guildconfig.GuildAuthConfig
		want      authz.Tier
	}{
		{
			name:      "owner without roles",
			principal: authz.Principal{UserID: 1, GuildOwnerID: 1},
			cfg:       cfg,
			want:      authz.TierOwner,
		},
		{
			name:      "owner with nil config",
			principal: authz.Principal{UserID: 1, GuildOwnerID: 1},
			want:      authz.TierOwner,
		},
		{
			name:      "admin role",
			principal: authz.Principal{UserID: 2, RoleIDs: []snowflake.ID{5, 100}, GuildOwnerID: 1},
			cfg:       cfg,
			want:      authz.TierAdmin,
		},
		{
			name:      "admin and mod roles",
			principal: authz.Principal{UserID: 2, RoleIDs: []snowflake.ID{200, 100}, GuildOwnerID: 1},
			cfg:       cfg,
			want:      authz.TierAdmin,
		},
		{
			name:      "mod role",
			principal: authz.Principal{UserID: 2, RoleIDs: []snowflake.ID{200}, GuildOwnerID: 1},
			cfg:       cfg,
			want:      authz.TierModerator,
		},
		{
			name:      "unprivileged",
			principal: authz.Principal{UserID: 2, RoleIDs: []snowflake.ID{300}, GuildOwnerID: 1},
			cfg:       cfg,
			want:      authz.TierNone,
		},
		{
			name:      "nil config",
			principal: authz.Principal{UserID: 2, RoleIDs: []snowflake.ID{100}, GuildOwnerID: 1},
			want:      authz.TierNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, authz.Classify(tt.principal, tt.cfg))
		})
	}
}

func TestRequire(t *testing.T) {
	t.Parallel()

	assert.True(t, authz.Require(authz.TierOwner, authz.AdminOrOwner))
	assert.True(t, authz.Require(authz.TierAdmin, authz.AdminOrOwner))
	assert.False(t, authz.Require(authz.TierModerator, authz.AdminOrOwner))
	assert.True(t, authz.Require(authz.TierModerator, authz.ModeratorOrHigher))
	assert.False(t, authz.Require(authz.TierNone, authz.ModeratorOrHigher))
}

func TestTierString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Owner", authz.TierOwner.String())
	assert.Equal(t, "None", authz.TierNone.String())
	assert.Equal(t, "Unknown", authz.Tier(42).String())
}

func TestCanViewHelp(t *testing.T) {
	t.Parallel()

	restricted := &guildconfig.GuildAuthConfig{
		AdminRoleIDs: []snowflake.ID{100},
		ModRoleIDs:   []snowflake.ID{200},
		HelpRoleIDs:  []snowflake.ID{300},
	}

	tests := []struct {
		name      string
		principal authz.Principal
		cfg       *guildconfig.GuildAuthConfig
		want      bool
	}{
		{"nil config", authz.Principal{UserID: 2, GuildOwnerID: 1}, nil, true},
		{"no help roles", authz.Principal{UserID: 2, GuildOwnerID: 1}, &guildconfig.GuildAuthConfig{ModRoleIDs: []snowflake.ID{200}}, true},
		{"owner", authz.Principal{UserID: 1, GuildOwnerID: 1}, restricted, true},
		{"admin", authz.Principal{UserID: 2, RoleIDs: []snowflake.ID{100}, GuildOwnerID: 1}, restricted, true},
		{"help role", authz.Principal{UserID: 2, RoleIDs: []snowflake.ID{300}, GuildOwnerID: 1}, restricted, true},
		{"moderator", authz.Principal{UserID: 2, RoleIDs: []snowflake.ID{200}, GuildOwnerID: 1}, restricted, false},
		{"unprivileged", authz.Principal{UserID: 2, GuildOwnerID: 1}, restricted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, authz.CanViewHelp(tt.principal, tt.cfg))
		})
	}

	// Help roles grant no authority tier
	assert.Equal(t, authz.TierNone, authz.Classify(authz.Principal{UserID: 2, RoleIDs: []snowflake.ID{300}, GuildOwnerID: 1}, restricted))
}
