package indexer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for IndexLock:
// - AcquireLock creates the lock file and its directory
// - A second acquisition fails with ErrLocked while the first is held
// - LockHeld reports held/free without taking the lock
// - Release makes the lock available again

func TestIndexLock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "index.lock")

	held, err := LockHeld(path)
	require.NoError(t, err)
	assert.False(t, held, "missing lock file means free")

	lock, err := AcquireLock(context.Background(), path)
	require.NoError(t, err)

	held, err = LockHeld(path)
	require.NoError(t, err)
	assert.True(t, held)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = AcquireLock(ctx, path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())

	held, err = LockHeld(path)
	require.NoError(t, err)
	assert.False(t, held)

	again, err := AcquireLock(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}
