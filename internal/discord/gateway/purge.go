package gateway

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/moderation"
	"go.uber.org/zap"
)

// PurgeMessages implements moderation.Gateway. Up to limit recent messages are
// scanned newest first; accepted messages younger than the bulk delete age
// limit are removed in batches of at most 100.
func (g *Gateway) PurgeMessages(
	ctx context.Context, channelID snowflake.ID, limit int, filter moderation.MessageFilter, reason string,
) (int, error) {
	ids, skipped, err := g.collectMessages(ctx, channelID, limit, filter)
	if err != nil {
		return 0, err
	}

	if skipped > 0 {
		g.logger.Debug("Skipped messages past the bulk delete age limit",
			zap.Uint64("channel_id", uint64(channelID)),
			zap.Int("skipped", skipped))
	}

	deleted := 0

	for _, batch := range chunk(ids, pageSize) {
		if len(batch) == 1 {
			err = g.rest.DeleteMessage(channelID, batch[0], rest.WithCtx(ctx), rest.WithReason(reason))
		} else {
			err = g.rest.BulkDeleteMessages(channelID, batch, rest.WithCtx(ctx), rest.WithReason(reason))
		}

		if err != nil {
			if deleted > 0 {
				g.logger.Warn("Purge stopped part way",
					zap.Uint64("channel_id", uint64(channelID)),
					zap.Int("deleted", deleted),
					zap.Error(err))
			}

			return deleted, classify("delete messages", err)
		}

		deleted += len(batch)
	}

	return deleted, nil
}

// collectMessages pages through the channel history and returns the ids of
// deletable messages along with the number skipped for age.
func (g *Gateway) collectMessages(
	ctx context.Context, channelID snowflake.ID, limit int, filter moderation.MessageFilter,
) ([]snowflake.ID, int, error) {
	cutoff := g.now().Add(-bulkDeleteMaxAge + bulkDeleteMargin)

	var (
		ids     []snowflake.ID
		skipped int
		before  snowflake.ID
	)

	for remaining := limit; remaining > 0; {
		want := min(remaining, pageSize)

		page, err := g.rest.GetMessages(channelID, 0, before, 0, want, rest.WithCtx(ctx))
		if err != nil {
			return nil, 0, classify("get messages", err)
		}

		selected, old := selectMessages(page, filter, cutoff)
		ids = append(ids, selected...)
		skipped += old
		remaining -= len(page)

		if len(page) < want {
			break
		}

		before = page[len(page)-1].ID
	}

	return ids, skipped, nil
}

// selectMessages applies filter to a page and splits off messages that are
// too old to bulk delete.
func selectMessages(page []discord.Message, filter moderation.MessageFilter, cutoff time.Time) ([]snowflake.ID, int) {
	var (
		ids     []snowflake.ID
		skipped int
	)

	for _, m := range page {
		msg := moderation.Message{ID: m.ID, AuthorID: m.Author.ID, CreatedAt: m.CreatedAt}
		if filter != nil && !filter(msg) {
			continue
		}

		if msg.CreatedAt.Before(cutoff) {
			skipped++
			continue
		}

		ids = append(ids, m.ID)
	}

	return ids, skipped
}

func chunk(ids []snowflake.ID, size int) [][]snowflake.ID {
	var out [][]snowflake.ID
	for len(ids) > 0 {
		n := min(size, len(ids))
		out = append(out, ids[:n])
		ids = ids[n:]
	}

	return out
}
