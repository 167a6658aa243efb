package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bot.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version = 1

[discord]
token = "abc"
prefix = "?"

[storage]
backend = "redis"

[storage.redis]
host = "localhost"
port = 6379
`)

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Discord.Token)
	assert.Equal(t, "?", cfg.Discord.Prefix)
	assert.Equal(t, config.BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "localhost", cfg.Storage.Redis.Host)
	assert.Equal(t, 6379, cfg.Storage.Redis.Port)

	// Defaults are filled for everything left out
	assert.Equal(t, "info", cfg.Debug.LogLevel)
	assert.Equal(t, 16, cfg.Discord.MaxConcurrentCommands)
	assert.Equal(t, "server_roles", cfg.Storage.DocumentName)
	assert.Equal(t, "sentinel:document:", cfg.Storage.Redis.KeyPrefix)
}

func TestLoadFileDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFile(writeConfig(t, "version = 1\n"))
	require.NoError(t, err)

	assert.Equal(t, "!", cfg.Discord.Prefix)
	assert.Equal(t, config.BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "data", cfg.Storage.File.Dir)
	assert.Equal(t, "sentinel", cfg.Telemetry.ServiceName)
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing version",
			content: "[discord]\ntoken = \"abc\"\n",
			wantErr: config.ErrConfigVersionMissing,
		},
		{
			name:    "version mismatch",
			content: "version = 99\n",
			wantErr: config.ErrConfigVersionMismatch,
		},
		{
			name:    "unknown backend",
			content: "version = 1\n[storage]\nbackend = \"mongo\"\n",
			wantErr: config.ErrUnknownBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadFile(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
