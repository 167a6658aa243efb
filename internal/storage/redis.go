package storage

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"
	"github.com/robalyx/sentinel/internal/setup/config"
	"go.uber.org/zap"
)

// RedisBackend stores the document under a single Redis key.
type RedisBackend struct {
	client rueidis.Client
	key    string
	logger *zap.Logger
}

// OpenRedis connects to the configured Redis server.
func OpenRedis(cfg *config.Redis, name string, logger *zap.Logger) (*RedisBackend, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Username:    cfg.Username,
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
		ClientName:  "sentinel",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	return NewRedisBackend(client, cfg.KeyPrefix+name, logger), nil
}

// NewRedisBackend wraps an existing client. The backend owns the client and
// closes it on Close.
func NewRedisBackend(client rueidis.Client, key string, logger *zap.Logger) *RedisBackend {
	return &RedisBackend{
		client: client,
		key:    key,
		logger: logger.Named("redis"),
	}
}

// Load implements Backend.
func (b *RedisBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := withRetry(ctx, func(ctx context.Context) ([]byte, error) {
		return b.client.Do(ctx, b.client.B().Get().Key(b.key).Build()).AsBytes()
	})
	if rueidis.IsRedisNil(err) {
		return nil, ErrNotExist
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", b.key, err)
	}

	return data, nil
}

// Save implements Backend.
func (b *RedisBackend) Save(ctx context.Context, data []byte) error {
	err := withRetryNoResult(ctx, func(ctx context.Context) error {
		return b.client.Do(ctx, b.client.B().Set().Key(b.key).Value(rueidis.BinaryString(data)).Build()).Error()
	})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", b.key, err)
	}

	b.logger.Debug("Saved document", zap.String("key", b.key), zap.Int("bytes", len(data)))

	return nil
}

// Name implements Backend.
func (b *RedisBackend) Name() string {
	return "redis"
}

// Close implements Backend.
func (b *RedisBackend) Close() error {
	b.client.Close()
	return nil
}
