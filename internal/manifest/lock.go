package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
)

// Lock serializes synchronization runs against one manifest and store pair
// across processes.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewLock returns an unlocked Lock backed by the file at path.
func NewLock(path string) *Lock {
	return &Lock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking. It returns an
// ERR_207_INDEX_LOCKED error when another run holds it.
func (l *Lock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !acquired {
		return rerrors.New(rerrors.ErrCodeIndexLocked, "another index run is in progress", nil).
			WithDetail("lock", l.path).
			WithSuggestion("wait for the other run to finish")
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Calling it on an unlocked Lock is a no-op.
func (l *Lock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }
