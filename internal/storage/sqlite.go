package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS documents (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)
`

// SQLiteBackend stores documents in a local SQLite database.
// A single connection is shared and guarded by a mutex.
type SQLiteBackend struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	name string
}

// OpenSQLite opens or creates the database at path and ensures the schema exists.
func OpenSQLite(_ context.Context, path, name string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite|sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := sqlitex.Execute(conn, sqliteSchema, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	return &SQLiteBackend{conn: conn, name: name}, nil
}

// Load implements Backend.
func (b *SQLiteBackend) Load(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	defer b.conn.SetInterrupt(b.conn.SetInterrupt(ctx.Done()))

	var (
		body  string
		found bool
	)

	err := sqlitex.Execute(b.conn, `SELECT body FROM documents WHERE name = ?`, &sqlitex.ExecOptions{
		Args: []any{b.name},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			body = stmt.ColumnText(0)
			found = true

			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	if !found {
		return nil, ErrNotExist
	}

	return []byte(body), nil
}

// Save implements Backend.
func (b *SQLiteBackend) Save(ctx context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	defer b.conn.SetInterrupt(b.conn.SetInterrupt(ctx.Done()))

	err := sqlitex.Execute(b.conn, `
		INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`, &sqlitex.ExecOptions{
		Args: []any{b.name, string(data), time.Now().Unix()},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

// Name implements Backend.
func (b *SQLiteBackend) Name() string {
	return "sqlite"
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.conn.Close()
}
