// Package storetest opens throwaway SQLite databases for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"studenttracker/internal/store"
)

// Open returns a migrated in-memory database that is closed with the test.
func Open(t testing.TB) *store.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_fk=1"
	db, err := store.NewDB(context.Background(), "sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}
