package gateway

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/moderation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restError(status int) error {
	return &rest.Error{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
		Message:  http.StatusText(status),
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "forbidden", err: restError(http.StatusForbidden), want: moderation.ErrGatewayForbidden},
		{name: "not found", err: restError(http.StatusNotFound), want: moderation.ErrGatewayNotFound},
		{name: "server error", err: restError(http.StatusBadGateway), want: moderation.ErrGatewayTransient},
		{name: "no response", err: &rest.Error{Message: "boom"}, want: moderation.ErrGatewayTransient},
		{name: "network", err: errors.New("connection reset by peer"), want: moderation.ErrGatewayTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := classify("op", tt.err)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRankOf(t *testing.T) {
	t.Parallel()

	roles := []discord.Role{
		{ID: 1, Position: 0},
		{ID: 2, Position: 7},
		{ID: 3, Position: 3},
	}

	assert.Equal(t, 7, rankOf(roles, []snowflake.ID{3, 2}))
	assert.Equal(t, 3, rankOf(roles, []snowflake.ID{3, 99}))
	assert.Equal(t, 0, rankOf(roles, nil))
}

func TestSelectMessages(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cutoff := now.Add(-bulkDeleteMaxAge)

	page := []discord.Message{
		{ID: 1, Author: discord.User{ID: 10}, CreatedAt: now},
		{ID: 2, Author: discord.User{ID: 11}, CreatedAt: now},
		{ID: 3, Author: discord.User{ID: 10}, CreatedAt: now.Add(-15 * 24 * time.Hour)},
		{ID: 4, Author: discord.User{ID: 10}, CreatedAt: now.Add(-time.Hour)},
	}

	ids, skipped := selectMessages(page, nil, cutoff)
	assert.Equal(t, []snowflake.ID{1, 2, 4}, ids)
	assert.Equal(t, 1, skipped)

	onlyAuthor := func(m moderation.Message) bool { return m.AuthorID == 10 }
	ids, skipped = selectMessages(page, onlyAuthor, cutoff)
	assert.Equal(t, []snowflake.ID{1, 4}, ids)
	assert.Equal(t, 1, skipped)
}

func TestChunk(t *testing.T) {
	t.Parallel()

	ids := make([]snowflake.ID, 250)
	for i := range ids {
		ids[i] = snowflake.ID(i + 1)
	}

	batches := chunk(ids, pageSize)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 100)
	assert.Len(t, batches[2], 50)
	assert.Empty(t, chunk(nil, pageSize))
}

func TestBuildEmbed(t *testing.T) {
	t.Parallel()

	ts := time.Unix(1700000000, 0)
	embed := buildEmbed(moderation.Embed{
		Title:     "Member Banned",
		Color:     0xED4245,
		Fields:    []moderation.EmbedField{{Name: "User", Value: "x (1)"}},
		Footer:    "Action ID: abc",
		Timestamp: ts,
	})

	assert.Equal(t, "Member Banned", embed.Title)
	assert.Equal(t, 0xED4245, embed.Color)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "User", embed.Fields[0].Name)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "Action ID: abc", embed.Footer.Text)
	require.NotNil(t, embed.Timestamp)
	assert.True(t, ts.Equal(*embed.Timestamp))
}
