package events_test

import (
	"errors"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/bot/events"
	"github.com/robalyx/sentinel/internal/guildconfig"
	"github.com/robalyx/sentinel/internal/moderation/moderationtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type staticConfig struct {
	cfg *guildconfig.GuildAuthConfig
}

func (s staticConfig) Get(snowflake.ID) *guildconfig.GuildAuthConfig {
	return s.cfg.Clone()
}

func ptr(id snowflake.ID) *snowflake.ID {
	return &id
}

func TestHandleJoin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         *guildconfig.GuildAuthConfig
		bot         bool
		wantRole    bool
		wantWelcome string
	}{
		{
			name: "nothing configured",
			cfg:  guildconfig.NewGuildAuthConfig(),
		},
		{
			name:     "auto-role only",
			cfg:      &guildconfig.GuildAuthConfig{AutoRoleID: ptr(300)},
			wantRole: true,
		},
		{
			name:        "welcome with rules channel",
			cfg:         &guildconfig.GuildAuthConfig{WelcomeChannelID: ptr(600), RulesChannelID: ptr(601)},
			wantWelcome: "Welcome to Test Guild, <@30>! Please read the rules in <#601>.",
		},
		{
			name:        "bots get no auto-role",
			cfg:         &guildconfig.GuildAuthConfig{AutoRoleID: ptr(300), WelcomeChannelID: ptr(600)},
			bot:         true,
			wantWelcome: "Welcome to Test Guild, <@30>! Please read the rules.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gateway := moderationtest.New(99)
			handler := events.NewMemberEventHandler(staticConfig{cfg: tt.cfg}, gateway, zaptest.NewLogger(t))

			handler.HandleJoin(t.Context(), events.MemberJoin{GuildID: 1, GuildName: "Test Guild", UserID: 30, Bot: tt.bot})

			roles := gateway.CallsTo("AddRole")
			if tt.wantRole {
				require.Len(t, roles, 1)
				assert.Equal(t, snowflake.ID(30), roles[0].UserID)
				assert.Equal(t, snowflake.ID(300), roles[0].RoleID)
			} else {
				assert.Empty(t, roles)
			}

			messages := gateway.CallsTo("SendMessage")
			if tt.wantWelcome != "" {
				require.Len(t, messages, 1)
				assert.Equal(t, snowflake.ID(600), messages[0].ChannelID)
				assert.Equal(t, tt.wantWelcome, messages[0].Content)
			} else {
				assert.Empty(t, messages)
			}
		})
	}
}

func TestHandleJoinContinuesAfterRoleFailure(t *testing.T) {
	t.Parallel()

	gateway := moderationtest.New(99)
	gateway.FailWith("AddRole", errors.New("missing permissions"))

	cfg := &guildconfig.GuildAuthConfig{AutoRoleID: ptr(300), WelcomeChannelID: ptr(600)}
	handler := events.NewMemberEventHandler(staticConfig{cfg: cfg}, gateway, zaptest.NewLogger(t))

	handler.HandleJoin(t.Context(), events.MemberJoin{GuildID: 1, UserID: 30})

	assert.Len(t, gateway.CallsTo("AddRole"), 1)
	messages := gateway.CallsTo("SendMessage")
	require.Len(t, messages, 1)
	assert.Equal(t, "Welcome to the server, <@30>! Please read the rules.", messages[0].Content)
}
