package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/robalyx/sentinel/internal/storage"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var (
	ErrNameRequired       = errors.New("NAME argument required")
	ErrPostgresNotEnabled = errors.New("storage backend is not postgres")
)

// schemaAction is a command body that runs against an open schema.
type schemaAction func(ctx context.Context, c *cli.Command, schema *storage.Schema, logger *zap.Logger) error

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "db",
		Usage: "Manage the schema of the postgres settings backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to bot.toml (searched for when unset)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create the migration tables",
				Action: withSchema(initSchema),
			},
			{
				Name:   "migrate",
				Usage:  "Apply pending migrations",
				Action: withSchema(upgradeSchema),
			},
			{
				Name:   "rollback",
				Usage:  "Revert the last migration group",
				Action: withSchema(rollbackSchema),
			},
			{
				Name:   "status",
				Usage:  "List applied and pending migrations",
				Action: withSchema(schemaStatus),
			},
			{
				Name:      "create",
				Usage:     "Write a new Go migration file",
				ArgsUsage: "NAME",
				Action:    withSchema(createMigration),
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// withSchema connects to the configured database for the duration of action.
func withSchema(action schemaAction) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		cfg, err := loadConfig(c.String("config"))
		if err != nil {
			return err
		}

		if cfg.Storage.Backend != config.BackendPostgres {
			return fmt.Errorf("%w: %q", ErrPostgresNotEnabled, cfg.Storage.Backend)
		}

		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck

		db := storage.NewPostgresDB(&cfg.Storage.PostgreSQL, logger)
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		return action(ctx, c, storage.NewSchema(db, logger), logger)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}

	cfg, _, err := config.LoadConfig()

	return cfg, err
}

func initSchema(ctx context.Context, _ *cli.Command, schema *storage.Schema, logger *zap.Logger) error {
	if err := schema.Init(ctx); err != nil {
		return err
	}

	logger.Info("Migration tables ready")

	return nil
}

func upgradeSchema(ctx context.Context, _ *cli.Command, schema *storage.Schema, _ *zap.Logger) error {
	_, err := schema.Upgrade(ctx)
	return err
}

func rollbackSchema(ctx context.Context, _ *cli.Command, schema *storage.Schema, _ *zap.Logger) error {
	_, err := schema.Rollback(ctx)
	return err
}

func schemaStatus(ctx context.Context, _ *cli.Command, schema *storage.Schema, logger *zap.Logger) error {
	status, err := schema.Status(ctx)
	if err != nil {
		return err
	}

	logger.Info("Migration status",
		zap.String("migrations", status.Migrations.String()),
		zap.String("unapplied", status.Unapplied.String()),
		zap.String("last_group", status.LastGroup.String()))

	return nil
}

func createMigration(ctx context.Context, c *cli.Command, schema *storage.Schema, _ *zap.Logger) error {
	if c.Args().Len() != 1 {
		return ErrNameRequired
	}

	_, err := schema.CreateMigration(ctx, c.Args().First())

	return err
}
