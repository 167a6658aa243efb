package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalyx/sentinel/internal/storage/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// SchemaStatus summarises the applied and pending migrations.
type SchemaStatus struct {
	Migrations migrate.MigrationSlice
	Unapplied  migrate.MigrationSlice
	LastGroup  *migrate.MigrationGroup
}

// Schema manages the guild_documents schema. Upgrades and rollbacks hold the
// migration lock so only one process changes the schema at a time.
type Schema struct {
	migrator *migrate.Migrator
	logger   *zap.Logger
}

// NewSchema returns a Schema over the registered migrations.
func NewSchema(db *bun.DB, logger *zap.Logger) *Schema {
	return &Schema{
		migrator: migrate.NewMigrator(db, migrations.Migrations),
		logger:   logger.Named("schema"),
	}
}

// Init creates the migration bookkeeping tables.
func (s *Schema) Init(ctx context.Context) error {
	if err := s.migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migration tables: %w", err)
	}

	return nil
}

// Upgrade applies every pending migration. The returned group is empty when
// the schema was already current.
func (s *Schema) Upgrade(ctx context.Context) (*migrate.MigrationGroup, error) {
	group, err := s.locked(ctx, s.migrator.Migrate)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if group.IsZero() {
		s.logger.Info("Schema is up to date")
	} else {
		s.logger.Info("Applied migrations", zap.String("group", group.String()))
	}

	return group, nil
}

// Rollback reverts the most recent migration group.
func (s *Schema) Rollback(ctx context.Context) (*migrate.MigrationGroup, error) {
	group, err := s.locked(ctx, s.migrator.Rollback)
	if err != nil {
		return nil, fmt.Errorf("failed to roll back migrations: %w", err)
	}

	if group.IsZero() {
		s.logger.Info("No migration group to roll back")
	} else {
		s.logger.Info("Rolled back migrations", zap.String("group", group.String()))
	}

	return group, nil
}

// Status reports which migrations have been applied.
func (s *Schema) Status(ctx context.Context) (SchemaStatus, error) {
	ms, err := s.migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to read migration status: %w", err)
	}

	return SchemaStatus{
		Migrations: ms,
		Unapplied:  ms.Unapplied(),
		LastGroup:  ms.LastGroup(),
	}, nil
}

// CreateMigration writes a new Go migration file next to the registered ones.
func (s *Schema) CreateMigration(ctx context.Context, name string) (*migrate.MigrationFile, error) {
	mf, err := s.migrator.CreateGoMigration(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration %q: %w", name, err)
	}

	s.logger.Info("Created migration", zap.String("name", mf.Name), zap.String("path", mf.Path))

	return mf, nil
}

func (s *Schema) locked(
	ctx context.Context, run func(context.Context, ...migrate.MigrationOption) (*migrate.MigrationGroup, error),
) (group *migrate.MigrationGroup, err error) {
	if err := s.migrator.Lock(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	defer func() {
		if unlockErr := s.migrator.Unlock(ctx); unlockErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release migration lock: %w", unlockErr))
		}
	}()

	return run(ctx)
}
