package storage_test

import (
	"os"
	"testing"

	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/robalyx/sentinel/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// postgresConfig points at a live server named by SENTINEL_TEST_POSTGRES_HOST.
func postgresConfig(t *testing.T) *config.PostgreSQL {
	t.Helper()

	host := os.Getenv("SENTINEL_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("skipping live postgres test: SENTINEL_TEST_POSTGRES_HOST is not set")
	}

	return &config.PostgreSQL{
		Host:     host,
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "sentinel_test",
	}
}

func TestSchemaUpgradeAndRollback(t *testing.T) {
	cfg := postgresConfig(t)
	ctx := t.Context()
	logger := zaptest.NewLogger(t)

	db := storage.NewPostgresDB(cfg, logger)
	t.Cleanup(func() { _ = db.Close() })

	schema := storage.NewSchema(db, logger)
	require.NoError(t, schema.Init(ctx))

	_, err := schema.Upgrade(ctx)
	require.NoError(t, err)

	// A second upgrade only works when the first released the lock
	group, err := schema.Upgrade(ctx)
	require.NoError(t, err)
	assert.True(t, group.IsZero())

	status, err := schema.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.Unapplied)
	assert.NotEmpty(t, status.Migrations)

	group, err = schema.Rollback(ctx)
	require.NoError(t, err)
	assert.False(t, group.IsZero())

	status, err = schema.Status(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, status.Unapplied)

	group, err = schema.Upgrade(ctx)
	require.NoError(t, err)
	assert.False(t, group.IsZero())
}

func TestPostgresBackendRoundTrip(t *testing.T) {
	cfg := postgresConfig(t)
	cfg.AutoMigrate = true
	ctx := t.Context()

	backend, err := storage.OpenPostgres(ctx, cfg, "round_trip", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	require.NoError(t, backend.Save(ctx, []byte(`{"1":{"admin_role_ids":["2"]}}`)))

	data, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"admin_role_ids":["2"]}}`, string(data))
}
