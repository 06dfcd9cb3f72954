package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"appshell/pkg/platform/sentinel"
	"appshell/pkg/platform/tx"
)

// SQLiteStore keeps values in a table of the on-device SQLite database.
// Like PostgresStore it joins a transaction carried by ctx.
type SQLiteStore struct {
	db    *sql.DB
	clock func() time.Time
}

// NewSQLite builds a store on an open SQLite handle. Call EnsureSchema once
// before use.
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, clock: time.Now}
}

func (s *SQLiteStore) conn(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

// EnsureSchema creates the kv_entries table and its updated_at index in one
// transaction.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		for _, stmt := range []string{
			`CREATE TABLE IF NOT EXISTS kv_entries (
				key        TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS kv_entries_updated_at_idx ON kv_entries (updated_at)`,
		} {
			if _, err := s.conn(ctx).ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ensure kv schema: %w", err)
	}
	return nil
}

// Health pings the database file.
func (s *SQLiteStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", backendError("get kv", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, s.clock().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return backendError("set kv", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return backendError("remove kv", key, err)
	}
	return nil
}
