package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the index lock.
var ErrLocked = errors.New("index lock is held by another process")

// lockRetryDelay is how often TryLockContext retries.
const lockRetryDelay = 100 * time.Millisecond

// IndexLock is the exclusive, cross-process lock an extraction run holds for
// its whole lifetime. The OS drops it when the holder dies, so a held lock
// with no live child is never possible; a free lock under an "indexing"
// status means the run is gone.
type IndexLock struct {
	lock *flock.Flock
}

// AcquireLock takes the index lock at path, waiting until ctx is done.
func AcquireLock(ctx context.Context, path string) (*IndexLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &IndexLock{lock: fl}, nil
}

// Release drops the lock.
func (l *IndexLock) Release() error {
	return l.lock.Unlock()
}

// LockHeld probes whether some process currently holds the lock at path.
// A missing lock file means nobody does.
func LockHeld(path string) (bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to probe index lock: %w", err)
	}
	if locked {
		fl.Unlock()
		return false, nil
	}
	return true, nil
}
