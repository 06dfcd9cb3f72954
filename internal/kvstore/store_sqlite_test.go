package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"appshell/internal/platform/sqlite"
	"appshell/pkg/platform/sentinel"
	"appshell/pkg/platform/tx"
)

type SQLiteStoreSuite struct {
	contractSuite
}

func TestSQLiteStoreSuite(t *testing.T) {
	s := new(SQLiteStoreSuite)
	s.newStore = func() Store {
		return openSQLiteStore(t, filepath.Join(t.TempDir(), "kv.db"))
	}
	suite.Run(t, s)
}

func openSQLiteStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	db, err := sqlite.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := NewSQLite(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store
}

func (s *SQLiteStoreSuite) TestSurvivesReopen() {
	ctx := context.Background()
	path := filepath.Join(s.T().TempDir(), "kv.db")

	first := openSQLiteStore(s.T(), path)
	s.Require().NoError(first.Set(ctx, "auth-storess", "persisted"))
	s.Require().NoError(first.db.Close())

	second := openSQLiteStore(s.T(), path)
	got, err := second.Get(ctx, "auth-storess")
	s.Require().NoError(err)
	s.Equal("persisted", got)
}

func (s *SQLiteStoreSuite) TestEnsureSchemaIsIdempotent() {
	ctx := context.Background()
	store := openSQLiteStore(s.T(), filepath.Join(s.T().TempDir(), "kv.db"))
	s.Require().NoError(store.EnsureSchema(ctx))

	var indexes int
	s.Require().NoError(store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'kv_entries_updated_at_idx'`,
	).Scan(&indexes))
	s.Equal(1, indexes)
}

func (s *SQLiteStoreSuite) TestClosedDatabaseIsUnavailable() {
	ctx := context.Background()
	store := openSQLiteStore(s.T(), filepath.Join(s.T().TempDir(), "kv.db"))
	s.Require().NoError(store.Health(ctx))
	s.Require().NoError(store.db.Close())

	s.ErrorIs(store.Health(ctx), sentinel.ErrUnavailable)
	_, err := store.Get(ctx, "k")
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.ErrorIs(store.Set(ctx, "k", "v"), sentinel.ErrUnavailable)
}

func (s *SQLiteStoreSuite) TestRolledBackTransactionLeavesNothing() {
	ctx := context.Background()
	store := openSQLiteStore(s.T(), filepath.Join(s.T().TempDir(), "kv.db"))

	err := tx.Run(ctx, store.db, func(ctx context.Context) error {
		s.Require().NoError(store.Set(ctx, "k", "draft"))
		return errors.New("abort")
	})
	s.EqualError(err, "abort")

	_, err = store.Get(ctx, "k")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
