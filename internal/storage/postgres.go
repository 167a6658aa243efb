package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bunotel"
	"go.uber.org/zap"
)

// GuildDocument is a row of the guild_documents table.
type GuildDocument struct {
	bun.BaseModel `bun:"table:guild_documents,alias:gd"`

	Name      string    `bun:",pk"`
	Body      string    `bun:",type:jsonb,notnull"`
	UpdatedAt time.Time `bun:",notnull"`
}

// PostgresBackend stores the document as a jsonb row.
type PostgresBackend struct {
	db     *bun.DB
	name   string
	logger *zap.Logger
}

// NewPostgresDB opens a bun database for cfg without touching the schema.
func NewPostgresDB(cfg *config.PostgreSQL, logger *zap.Logger) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.DBName),
		pgdriver.WithInsecure(true),
		pgdriver.WithApplicationName("sentinel"),
	))

	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if cfg.MaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Minute)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(NewHook(logger))
	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName(cfg.DBName)))

	return db
}

// OpenPostgres connects to PostgreSQL and optionally applies pending migrations.
func OpenPostgres(ctx context.Context, cfg *config.PostgreSQL, name string, logger *zap.Logger) (*PostgresBackend, error) {
	logger = logger.Named("postgres")
	db := NewPostgresDB(cfg, logger)

	if err := withRetryNoResult(ctx, db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if cfg.AutoMigrate {
		schema := NewSchema(db, logger)
		if err := schema.Init(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}

		if _, err := schema.Upgrade(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &PostgresBackend{db: db, name: name, logger: logger}, nil
}

// Load implements Backend.
func (b *PostgresBackend) Load(ctx context.Context) ([]byte, error) {
	doc, err := withRetry(ctx, func(ctx context.Context) (*GuildDocument, error) {
		doc := new(GuildDocument)
		err := b.db.NewSelect().
			Model(doc).
			Where("name = ?", b.name).
			Scan(ctx)

		return doc, err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotExist
	}

	if err != nil {
		return nil, fmt.Errorf("failed to select document: %w", err)
	}

	return []byte(doc.Body), nil
}

// Save implements Backend.
func (b *PostgresBackend) Save(ctx context.Context, data []byte) error {
	doc := &GuildDocument{
		Name:      b.name,
		Body:      string(data),
		UpdatedAt: time.Now(),
	}

	err := withRetryNoResult(ctx, func(ctx context.Context) error {
		_, err := b.db.NewInsert().
			Model(doc).
			On("CONFLICT (name) DO UPDATE").
			Set("body = EXCLUDED.body").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

// Name implements Backend.
func (b *PostgresBackend) Name() string {
	return "postgres"
}

// Close implements Backend.
func (b *PostgresBackend) Close() error {
	if err := b.db.Close(); err != nil {
		b.logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}

	return nil
}
