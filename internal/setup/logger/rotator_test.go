package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineRing(t *testing.T) {
	t.Parallel()

	ring := newLineRing(3)
	assert.Nil(t, ring.ordered())

	for i := range 5 {
		ring.push(fmt.Sprintf("line %d", i))
	}

	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, ring.ordered())
	assert.Equal(t, 5, ring.seen)
}

func TestLogRotatorCompacts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")

	rotator, err := NewLogRotator(path, 3)
	require.NoError(t, err)

	for i := range 7 {
		_, err := fmt.Fprintf(rotator, "entry %d\n", i)
		require.NoError(t, err)
	}

	require.NoError(t, rotator.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Compaction after the sixth line keeps entries 3-5, then entry 6 is appended
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{"entry 3", "entry 4", "entry 5", "entry 6"}, lines)
}

func TestManagerGetLoggers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manager := NewManager(dir, &config.Debug{
		LogLevel:      "debug",
		MaxLogsToKeep: 2,
		MaxLogLines:   100,
	})

	mainLogger, storageLogger, err := manager.GetLoggers()
	require.NoError(t, err)

	mainLogger.Info("hello from main")
	storageLogger.Debug("hello from storage")
	require.NoError(t, manager.Close())

	for _, name := range []string{"main.log", "storage.log"} {
		assert.FileExists(t, filepath.Join(manager.SessionDir(), name))
		assert.FileExists(t, filepath.Join(dir, "latest", name))
	}

	data, err := os.ReadFile(filepath.Join(dir, "latest", "main.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from main")
}

func TestManagerInvalidLevel(t *testing.T) {
	t.Parallel()

	manager := NewManager(t.TempDir(), &config.Debug{LogLevel: "loud", MaxLogsToKeep: 1, MaxLogLines: 10})

	_, _, err := manager.GetLoggers()
	require.Error(t, err)
}
