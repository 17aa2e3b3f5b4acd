package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/codescout-dev/codescout/internal/store"
)

// projectLock is a cross-process lock on a project's index directory.
// Two concurrent indexing runs for the same project would race on the
// database and metadata; the second run must fail fast instead.
type projectLock struct {
	flock  *flock.Flock
	locked bool
}

func newProjectLock(indexDir string) *projectLock {
	return &projectLock{
		flock: flock.New(filepath.Join(indexDir, store.LockFileName)),
	}
}

// TryLock attempts to acquire the lock without blocking.
func (l *projectLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe on an unlocked projectLock.
func (l *projectLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
