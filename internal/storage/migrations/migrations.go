package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds every schema migration for the postgres backend.
var Migrations = migrate.NewMigrations() //nolint:gochecknoglobals // -
