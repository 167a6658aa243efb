// Package storage persists the guild settings document as an opaque JSON blob.
// Every backend stores exactly one document per name and replaces it wholesale.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalyx/sentinel/internal/setup/config"
	"go.uber.org/zap"
)

var (
	// ErrNotExist is returned by Load when no document has been saved yet.
	ErrNotExist = errors.New("document does not exist")
	// ErrUnsupportedBackend is returned by Open for an unknown backend name.
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
)

// Backend loads and saves a single named document.
type Backend interface {
	// Load returns the stored document or ErrNotExist.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored document.
	Save(ctx context.Context, data []byte) error
	// Name identifies the backend in logs.
	Name() string
	// Close releases any held connections.
	Close() error
}

// Open creates the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg *config.Storage, logger *zap.Logger) (Backend, error) {
	logger = logger.Named("storage")

	var (
		backend Backend
		err     error
	)

	switch cfg.Backend {
	case config.BackendFile:
		backend, err = NewFileBackend(cfg.File.Dir, cfg.DocumentName)
	case config.BackendSQLite:
		backend, err = OpenSQLite(ctx, cfg.SQLite.Path, cfg.DocumentName)
	case config.BackendPostgres:
		backend, err = OpenPostgres(ctx, &cfg.PostgreSQL, cfg.DocumentName, logger)
	case config.BackendRedis:
		backend, err = OpenRedis(&cfg.Redis, cfg.DocumentName, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Backend)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}

	logger.Info("Storage backend ready",
		zap.String("backend", backend.Name()),
		zap.String("document", cfg.DocumentName))

	return backend, nil
}
