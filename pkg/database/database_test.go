package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hunt2035/SoundSync-sub002/pkg/config"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	cfg := config.NewForTest()
	cfg.DatabaseFilePath = filepath.Join(t.TempDir(), "test.db")

	db, err := New(cfg)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)

	require.NoError(t, CheckFTS5Support(db))
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("retries busy errors", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), 3, func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked (5) (SQLITE_BUSY)")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), 2, func() error {
			calls++
			return errors.New("database is locked")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), 5, func() error {
			calls++
			return errors.New("no such table: books")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when the context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, 5, func() error {
			return errors.New("database is locked")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: books.content_hash (2067)")))
	assert.False(t, IsUniqueViolation(errors.New("database is locked")))
	assert.False(t, IsUniqueViolation(nil))
}
