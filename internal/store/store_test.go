package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studenttracker/internal/store"
	"studenttracker/internal/store/storetest"
)

func insertUser(ctx context.Context, q store.DBTX, id, email string) error {
	now := time.Now().UTC()
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at)
		VALUES ($1, $2, 'x', 'A', 'B', 'admin', TRUE, $3, $3)
	`, id, email, now)
	return err
}

func countUsers(t *testing.T, db *store.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Client.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	return n
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := storetest.Open(t)
	require.NoError(t, db.Migrate(context.Background()))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, db.Client, func(tx *sql.Tx) error {
		require.NoError(t, insertUser(ctx, tx, "u1", "a@example.com"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countUsers(t, db))

	err = store.WithTx(ctx, db.Client, func(tx *sql.Tx) error {
		return insertUser(ctx, tx, "u1", "a@example.com")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countUsers(t, db))
}

func TestSavepointKeepsSiblingWork(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()

	err := store.WithTx(ctx, db.Client, func(tx *sql.Tx) error {
		require.NoError(t, store.Savepoint(ctx, tx, "first", func() error {
			return insertUser(ctx, tx, "u1", "a@example.com")
		}))
		err := store.Savepoint(ctx, tx, "second", func() error {
			if err := insertUser(ctx, tx, "u2", "b@example.com"); err != nil {
				return err
			}
			return insertUser(ctx, tx, "u3", "a@example.com")
		})
		require.Error(t, err)
		assert.True(t, store.IsUniqueViolation(err))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countUsers(t, db))
}

func TestIsUniqueViolation(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()

	require.NoError(t, insertUser(ctx, db.Client, "u1", "a@example.com"))
	err := insertUser(ctx, db.Client, "u2", "a@example.com")
	require.Error(t, err)
	assert.True(t, store.IsUniqueViolation(err))

	assert.False(t, store.IsUniqueViolation(errors.New("other")))
	assert.False(t, store.IsUniqueViolation(nil))
}

func TestNewRedis(t *testing.T) {
	r, err := store.NewRedis("")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, r.Close())

	r, err = store.NewRedis("redis://:secret@cache.internal:6380/2")
	require.NoError(t, err)
	defer r.Close()
	opts := r.Client.Options()
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, time.Second, opts.ReadTimeout)

	_, err = store.NewRedis("redis://host/not-a-db")
	assert.Error(t, err)
}
