package moderation_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/guildconfig"
	"github.com/robalyx/sentinel/internal/moderation"
	"github.com/robalyx/sentinel/internal/moderation/moderationtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	guildID   = snowflake.ID(1)
	ownerID   = snowflake.ID(10)
	modID     = snowflake.ID(20)
	adminID   = snowflake.ID(21)
	plainID   = snowflake.ID(22)
	memberID  = snowflake.ID(30)
	seniorID  = snowflake.ID(31)
	topID     = snowflake.ID(32)
	outsideID = snowflake.ID(40)
	botID     = snowflake.ID(99)

	adminRoleID = snowflake.ID(100)
	modRoleID   = snowflake.ID(200)
	lowRoleID   = snowflake.ID(300)
	highRoleID  = snowflake.ID(301)
	logChannel  = snowflake.ID(500)
	textChannel = snowflake.ID(501)
)

var errDiscord = errors.New("discord exploded")

// staticConfig serves a fixed configuration.
type staticConfig struct {
	cfg *guildconfig.GuildAuthConfig
}

func (s staticConfig) Get(snowflake.ID) *guildconfig.GuildAuthConfig {
	return s.cfg.Clone()
}

type fixture struct {
	gateway  *moderationtest.Gateway
	pipeline *moderation.Pipeline
	guild    moderation.Guild
}

func member(id snowflake.ID, name string, rank int, roles ...snowflake.ID) moderation.Member {
	return moderation.Member{
		User:    moderation.User{ID: id, Name: name},
		RoleIDs: roles,
		Rank:    rank,
	}
}

func newFixture(t *testing.T, withLogChannel bool) *fixture {
	t.Helper()

	gateway := moderationtest.New(botID)
	guild := moderation.Guild{ID: guildID, Name: "Test Guild", OwnerID: ownerID}
	gateway.Guilds[guildID] = guild

	gateway.AddMember(member(ownerID, "owner", 0))
	gateway.AddMember(member(modID, "mod", 20, modRoleID))
	gateway.AddMember(member(adminID, "admin", 30, adminRoleID))
	gateway.AddMember(member(plainID, "plain", 5))
	gateway.AddMember(member(memberID, "member", 5, lowRoleID))
	gateway.AddMember(member(seniorID, "senior", 25))
	gateway.AddMember(member(topID, "top", 60))
	gateway.AddMember(moderation.Member{User: moderation.User{ID: botID, Name: "sentinel", Bot: true}, Rank: 50})
	gateway.Users[outsideID] = moderation.User{ID: outsideID, Name: "outsider"}

	gateway.AddGuildRole(moderation.Role{ID: lowRoleID, Name: "Low", Position: 5})
	gateway.AddGuildRole(moderation.Role{ID: highRoleID, Name: "High", Position: 55})
	gateway.AddGuildRole(moderation.Role{ID: modRoleID, Name: "Mod", Position: 20})

	cfg := &guildconfig.GuildAuthConfig{
		AdminRoleIDs: []snowflake.ID{adminRoleID},
		ModRoleIDs:   []snowflake.ID{modRoleID},
	}

	if withLogChannel {
		id := logChannel
		cfg.LogChannelID = &id
	}

	return &fixture{
		gateway:  gateway,
		pipeline: moderation.NewPipeline(gateway, staticConfig{cfg: cfg}, zaptest.NewLogger(t)),
		guild:    guild,
	}
}

func (f *fixture) actor(id snowflake.ID) moderation.Actor {
	return moderation.Actor{Member: f.gateway.Members[id], Guild: f.guild}
}

func TestBanByModeratorExecutes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	outcome := f.pipeline.Ban(t.Context(), moderation.Request{
		GuildID: guildID,
		Actor:   f.actor(modID),
		Target:  moderation.RefID(memberID),
	})

	require.True(t, outcome.Executed(), outcome.Err)
	assert.Equal(t, moderation.StageTerminal, outcome.Stage)
	assert.True(t, outcome.Audited)

	dms := f.gateway.CallsTo("SendDirect")
	require.Len(t, dms, 1)
	assert.Equal(t, memberID, dms[0].UserID)
	assert.Contains(t, dms[0].Content, "You were banned from **Test Guild**")

	bans := f.gateway.CallsTo("Ban")
	require.Len(t, bans, 1)
	assert.Equal(t, "No reason provided (by mod)", bans[0].Reason)

	embeds := f.gateway.CallsTo("SendEmbed")
	require.Len(t, embeds, 1)
	assert.Equal(t, logChannel, embeds[0].ChannelID)
	assert.Equal(t, "Member Banned", embeds[0].Embed.Title)

	msg := outcome.Message()
	assert.Contains(t, msg, "Banned **member**")
	assert.Contains(t, msg, "No reason provided")
	assert.Contains(t, msg, "mod")

	// The DM precedes the ban
	calls := f.gateway.Calls()
	assert.Equal(t, "SendDirect", calls[0].Method)
	assert.Equal(t, "Ban", calls[1].Method)
}

func TestHierarchyDenials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		actorID snowflake.ID
		target  snowflake.ID
		wantErr error
	}{
		{name: "target ranked above actor", actorID: modID, target: seniorID, wantErr: moderation.ErrInsufficientRank},
		{name: "target ranked equal to actor", actorID: modID, target: modID + 1000, wantErr: moderation.ErrInsufficientRank},
		{name: "target ranked above bot", actorID: ownerID, target: topID, wantErr: moderation.ErrBotRankInsufficient},
		{name: "self", actorID: modID, target: modID, wantErr: moderation.ErrCannotTargetSelf},
		{name: "bot", actorID: ownerID, target: botID, wantErr: moderation.ErrCannotTargetBot},
		{name: "owner", actorID: adminID, target: ownerID, wantErr: moderation.ErrCannotTargetOwner},
		{name: "unprivileged actor", actorID: plainID, target: memberID, wantErr: moderation.ErrInsufficientPermission},
	}

	for _, tt := range tests {
		for _, kick := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/kick=%t", tt.name, kick), func(t *testing.T) {
				t.Parallel()

				f := newFixture(t, true)
				f.gateway.AddMember(member(modID+1000, "peer", 20))

				req := moderation.Request{GuildID: guildID, Actor: f.actor(tt.actorID), Target: moderation.RefID(tt.target)}

				var outcome moderation.Outcome
				if kick {
					outcome = f.pipeline.Kick(t.Context(), req)
				} else {
					outcome = f.pipeline.Ban(t.Context(), req)
				}

				assert.Equal(t, moderation.StatusDenied, outcome.Status)
				require.ErrorIs(t, outcome.Err, tt.wantErr)
				assert.Empty(t, f.gateway.Calls(), "denied actions must not reach the gateway")
			})
		}
	}
}

func TestOwnerBypassesActorHierarchy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	outcome := f.pipeline.Kick(t.Context(), moderation.Request{
		GuildID: guildID,
		Actor:   f.actor(ownerID),
		Target:  moderation.RefID(seniorID),
		Reason:  "spam",
	})

	require.True(t, outcome.Executed(), outcome.Err)
	assert.Equal(t, "spam (by owner)", f.gateway.CallsTo("Kick")[0].Reason)
	assert.Empty(t, f.gateway.CallsTo("SendEmbed"))
	assert.False(t, outcome.Audited)
	assert.Equal(t, "✅ Kicked **senior**.\nReason: spam\nBy: owner", outcome.Message())
}

func TestExternalTargets(t *testing.T) {
	t.Parallel()

	t.Run("ban external user", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, true)
		outcome := f.pipeline.Ban(t.Context(), moderation.Request{
			GuildID: guildID,
			Actor:   f.actor(modID),
			Target:  moderation.RefID(outsideID),
		})

		require.True(t, outcome.Executed(), outcome.Err)
		assert.Empty(t, f.gateway.CallsTo("SendDirect"))
		assert.Len(t, f.gateway.CallsTo("Ban"), 1)
	})

	t.Run("kick external user", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, true)
		outcome := f.pipeline.Kick(t.Context(), moderation.Request{
			GuildID: guildID,
			Actor:   f.actor(modID),
			Target:  moderation.RefID(outsideID),
		})

		require.ErrorIs(t, outcome.Err, moderation.ErrTargetNotInGuild)
		assert.Equal(t, moderation.KindTargetNotFound, outcome.Kind())
		assert.Equal(t, "❌ That user is not in this server.", outcome.Message())
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, true)
		outcome := f.pipeline.Ban(t.Context(), moderation.Request{
			GuildID: guildID,
			Actor:   f.actor(modID),
			Target:  moderation.RefID(12345),
		})

		assert.Equal(t, moderation.StatusDenied, outcome.Status)
		require.ErrorIs(t, outcome.Err, moderation.ErrTargetNotFound)
		assert.Empty(t, f.gateway.Calls())
	})
}

func TestBestEffortSideEffects(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.gateway.FailWith("SendDirect", fmt.Errorf("%w: dms closed", moderation.ErrGatewayForbidden))
	f.gateway.FailWith("SendEmbed", fmt.Errorf("%w: channel gone", moderation.ErrGatewayNotFound))

	outcome := f.pipeline.Ban(t.Context(), moderation.Request{
		GuildID: guildID,
		Actor:   f.actor(adminID),
		Target:  moderation.RefID(memberID),
		Reason:  "raid",
	})

	require.True(t, outcome.Executed(), outcome.Err)
	assert.False(t, outcome.Audited)
	assert.Len(t, f.gateway.CallsTo("SendDirect"), 1)
	assert.Len(t, f.gateway.CallsTo("SendEmbed"), 1)
}

func TestGatewayFailureAborts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantKind moderation.Kind
		wantMsg  string
	}{
		{
			name:     "forbidden",
			err:      fmt.Errorf("%w: missing permissions", moderation.ErrGatewayForbidden),
			wantKind: moderation.KindGatewayForbidden,
			wantMsg:  "❌ I don't have permission to ban members.",
		},
		{
			name:     "transient",
			err:      fmt.Errorf("%w: %w", moderation.ErrGatewayTransient, errDiscord),
			wantKind: moderation.KindGatewayTransient,
			wantMsg:  "❌ Ban failed due to a Discord error.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, true)
			f.gateway.FailWith("Ban", tt.err)

			outcome := f.pipeline.Ban(t.Context(), moderation.Request{
				GuildID: guildID,
				Actor:   f.actor(modID),
				Target:  moderation.RefID(memberID),
			})

			assert.Equal(t, moderation.StatusAborted, outcome.Status)
			assert.Equal(t, moderation.StageExecuting, outcome.Stage)
			assert.Equal(t, tt.wantKind, outcome.Kind())
			assert.Equal(t, tt.wantMsg, outcome.Message())
			assert.Empty(t, f.gateway.CallsTo("SendEmbed"))
		})
	}
}

func TestUnban(t *testing.T) {
	t.Parallel()

	t.Run("no active ban", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, true)
		outcome := f.pipeline.Unban(t.Context(), moderation.UnbanRequest{
			GuildID: guildID,
			Actor:   f.actor(modID),
			UserID:  123456,
		})

		assert.Equal(t, moderation.StatusDenied, outcome.Status)
		require.ErrorIs(t, outcome.Err, moderation.ErrNotBanned)
		assert.Equal(t, moderation.KindTargetNotFound, outcome.Kind())
		assert.Equal(t, "❌ That user isn't banned (or wrong ID).", outcome.Message())
		assert.Empty(t, f.gateway.Calls())
	})

	t.Run("active ban", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, true)
		f.gateway.Bans[outsideID] = moderation.User{ID: outsideID, Name: "outsider"}

		outcome := f.pipeline.Unban(t.Context(), moderation.UnbanRequest{
			GuildID: guildID,
			Actor:   f.actor(modID),
			UserID:  outsideID,
			Reason:  "appeal accepted",
		})

		require.True(t, outcome.Executed(), outcome.Err)
		assert.Equal(t, "appeal accepted (by mod)", f.gateway.CallsTo("Unban")[0].Reason)
		assert.Equal(t, "User Unbanned", f.gateway.CallsTo("SendEmbed")[0].Embed.Title)
		assert.NotContains(t, f.gateway.Bans, outsideID)
	})

	t.Run("ban vanished before execute", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, true)
		f.gateway.Bans[outsideID] = moderation.User{ID: outsideID, Name: "outsider"}
		f.gateway.FailWith("Unban", fmt.Errorf("%w: unknown ban", moderation.ErrGatewayNotFound))

		outcome := f.pipeline.Unban(t.Context(), moderation.UnbanRequest{
			GuildID: guildID,
			Actor:   f.actor(modID),
			UserID:  outsideID,
		})

		require.ErrorIs(t, outcome.Err, moderation.ErrNotBanned)
		assert.Empty(t, f.gateway.CallsTo("SendEmbed"))
	})

	t.Run("unprivileged", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, true)
		outcome := f.pipeline.Unban(t.Context(), moderation.UnbanRequest{
			GuildID: guildID,
			Actor:   f.actor(plainID),
			UserID:  outsideID,
		})

		require.ErrorIs(t, outcome.Err, moderation.ErrInsufficientPermission)
		assert.Equal(t, moderation.StageAuthorizing, outcome.Stage)
	})
}

func seedMessages(f *fixture, n int, authors ...snowflake.ID) {
	now := time.Now()
	for i := range n {
		f.gateway.Messages[textChannel] = append(f.gateway.Messages[textChannel], moderation.Message{
			ID:        snowflake.ID(10_000 + i),
			AuthorID:  authors[i%len(authors)],
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
	}
}

func TestClearBounds(t *testing.T) {
	t.Parallel()

	for _, count := range []int{0, -3, 201, 300} {
		t.Run(fmt.Sprint(count), func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, true)
			outcome := f.pipeline.Clear(t.Context(), moderation.ClearRequest{
				GuildID:   guildID,
				ChannelID: textChannel,
				Actor:     f.actor(modID),
				Count:     count,
			})

			assert.Equal(t, moderation.StatusDenied, outcome.Status)
			assert.Equal(t, moderation.KindValidationFailed, outcome.Kind())
			assert.Empty(t, f.gateway.Calls())
		})
	}
}

func TestClearReportsActualCount(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	seedMessages(f, 10, memberID)

	outcome := f.pipeline.Clear(t.Context(), moderation.ClearRequest{
		GuildID:   guildID,
		ChannelID: textChannel,
		Actor:     f.actor(modID),
		Count:     50,
	})

	require.True(t, outcome.Executed(), outcome.Err)
	assert.Equal(t, 10, outcome.Record.Count)
	assert.Equal(t, "🧹 Deleted **10** messages.", outcome.Message())
	assert.Equal(t, "Messages Cleared", f.gateway.CallsTo("SendEmbed")[0].Embed.Title)
}

func TestClearPartialFailureIsAudited(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failAfter int
		want      string
	}{
		{"nothing deleted", 0, "❌ Failed to delete messages (Discord error)."},
		{"some deleted", 3, "⚠️ Deleted **3** messages before a Discord error stopped the rest."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, true)
			seedMessages(f, 10, memberID)
			f.gateway.FailWith("PurgeMessages", moderation.ErrGatewayTransient)
			f.gateway.PurgeFailAfter = tt.failAfter

			outcome := f.pipeline.Clear(t.Context(), moderation.ClearRequest{
				GuildID:   guildID,
				ChannelID: textChannel,
				Actor:     f.actor(modID),
				Count:     10,
			})

			assert.Equal(t, moderation.StatusAborted, outcome.Status)
			assert.Equal(t, moderation.KindGatewayTransient, outcome.Kind())
			assert.Equal(t, tt.want, outcome.Message())

			embeds := f.gateway.CallsTo("SendEmbed")
			if tt.failAfter == 0 {
				assert.Nil(t, outcome.Record)
				assert.Empty(t, embeds)
				return
			}

			require.NotNil(t, outcome.Record)
			assert.Equal(t, tt.failAfter, outcome.Record.Count)
			assert.True(t, outcome.Audited)
			require.Len(t, embeds, 1)
			assert.Equal(t, "3", embeds[0].Embed.Fields[1].Value)
			assert.Len(t, f.gateway.Messages[textChannel], 10-tt.failAfter)
		})
	}
}

func TestClearByAuthorAndExclusions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	seedMessages(f, 10, memberID, seniorID)

	author := moderation.RefID(memberID)
	outcome := f.pipeline.Clear(t.Context(), moderation.ClearRequest{
		GuildID:   guildID,
		ChannelID: textChannel,
		Actor:     f.actor(modID),
		Count:     10,
		Author:    &author,
		Exclude:   []snowflake.ID{10_000},
	})

	require.True(t, outcome.Executed(), outcome.Err)
	assert.Equal(t, 4, outcome.Record.Count)
	assert.Equal(t, "🧹 Deleted **4** messages from **member**.", outcome.Message())
	assert.Len(t, f.gateway.Messages[textChannel], 6)
}

func TestRoleActions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		revoke  bool
		actorID snowflake.ID
		target  snowflake.ID
		roleID  snowflake.ID
		wantErr error
	}{
		{name: "grant", actorID: adminID, target: plainID, roleID: lowRoleID},
		{name: "revoke", revoke: true, actorID: adminID, target: memberID, roleID: lowRoleID},
		{name: "moderator denied", actorID: modID, target: plainID, roleID: lowRoleID, wantErr: moderation.ErrInsufficientPermission},
		{name: "already assigned", actorID: adminID, target: memberID, roleID: lowRoleID, wantErr: moderation.ErrRoleAlreadyAssigned},
		{name: "not assigned", revoke: true, actorID: adminID, target: plainID, roleID: lowRoleID, wantErr: moderation.ErrRoleNotAssigned},
		{name: "role above actor", actorID: adminID, target: plainID, roleID: highRoleID, wantErr: moderation.ErrInsufficientRank},
		{name: "role above bot", actorID: ownerID, target: plainID, roleID: highRoleID, wantErr: moderation.ErrBotRankInsufficient},
		{name: "unknown role", actorID: adminID, target: plainID, roleID: 999, wantErr: moderation.ErrRoleNotFound},
		{name: "external user", actorID: adminID, target: outsideID, roleID: lowRoleID, wantErr: moderation.ErrTargetNotInGuild},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, true)
			req := moderation.RoleRequest{
				GuildID: guildID,
				Actor:   f.actor(tt.actorID),
				Target:  moderation.RefID(tt.target),
				RoleID:  tt.roleID,
			}

			var outcome moderation.Outcome
			if tt.revoke {
				outcome = f.pipeline.RevokeRole(t.Context(), req)
			} else {
				outcome = f.pipeline.GrantRole(t.Context(), req)
			}

			if tt.wantErr != nil {
				require.ErrorIs(t, outcome.Err, tt.wantErr)
				assert.Empty(t, f.gateway.CallsTo("AddRole"))
				assert.Empty(t, f.gateway.CallsTo("RemoveRole"))

				return
			}

			require.True(t, outcome.Executed(), outcome.Err)
			assert.NotNil(t, outcome.Record.Role)
			assert.Len(t, f.gateway.CallsTo("SendEmbed"), 1)

			held := f.gateway.Members[tt.target].RoleIDs
			if tt.revoke {
				assert.NotContains(t, held, tt.roleID)
				assert.Equal(t, "✅ Removed role **Low** from **member**.", outcome.Message())
			} else {
				assert.Contains(t, held, tt.roleID)
				assert.Equal(t, "✅ Added role **Low** to **plain**.", outcome.Message())
			}
		})
	}
}

func TestResolveActor(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	actor, err := f.pipeline.Resolver().ResolveActor(t.Context(), guildID, modID)
	require.NoError(t, err)
	assert.Equal(t, "Test Guild", actor.Guild.Name)
	assert.Equal(t, 20, actor.Rank)
	assert.False(t, actor.IsOwner())

	owner, err := f.pipeline.Resolver().ResolveActor(t.Context(), guildID, ownerID)
	require.NoError(t, err)
	assert.True(t, owner.IsOwner())

	_, err = f.pipeline.Resolver().ResolveActor(t.Context(), guildID, 4242)
	require.ErrorIs(t, err, moderation.ErrGatewayNotFound)
}

func TestResolveTransientFailureAborts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.gateway.FailWith("Member", fmt.Errorf("%w: timeout", moderation.ErrGatewayTransient))

	outcome := f.pipeline.Ban(t.Context(), moderation.Request{
		GuildID: guildID,
		Actor:   f.actor(modID),
		Target:  moderation.RefID(memberID),
	})

	assert.Equal(t, moderation.StatusAborted, outcome.Status)
	assert.Equal(t, moderation.StageValidating, outcome.Stage)
	assert.Empty(t, f.gateway.Calls())
}
