package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	bderrors "github.com/Aman-CERP/bibdex/internal/errors"
)

// FileLock is a cross-process lock on <data dir>/.bibdex.lock.
// Writers (sync, watch) hold it exclusively; readers (query, serve) hold it shared.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates a lock for the data directory dir.
func NewFileLock(dir string) *FileLock {
	path := filepath.Join(dir, LockFile)
	return &FileLock{path: path, flock: flock.New(path)}
}

// TryLock attempts to take the exclusive lock without blocking.
func (l *FileLock) TryLock() (bool, error) {
	return l.try(l.flock.TryLock)
}

// TryRLock attempts to take a shared lock without blocking.
func (l *FileLock) TryRLock() (bool, error) {
	return l.try(l.flock.TryRLock)
}

func (l *FileLock) try(fn func() (bool, error)) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	ok, err := fn()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = ok
	return ok, nil
}

// Unlock releases the lock. Calling it on an unlocked FileLock is a no-op.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// IsLocked reports whether this FileLock currently holds the lock.
func (l *FileLock) IsLocked() bool {
	return l.locked
}

// AcquireWriter takes the exclusive lock on dir or fails fast.
func AcquireWriter(dir string) (*FileLock, error) {
	l := NewFileLock(dir)
	ok, err := l.TryLock()
	if err != nil {
		return nil, bderrors.New(bderrors.ErrCodeLocked, "cannot lock data directory", err).WithDetail("path", dir)
	}
	if !ok {
		return nil, bderrors.New(bderrors.ErrCodeLocked, "data directory is in use by another bibdex process", nil).
			WithDetail("path", dir).
			WithSuggestion("wait for the running sync or query to finish")
	}
	return l, nil
}

// AcquireReader takes a shared lock on dir or fails fast while a sync runs.
func AcquireReader(dir string) (*FileLock, error) {
	l := NewFileLock(dir)
	ok, err := l.TryRLock()
	if err != nil {
		return nil, bderrors.New(bderrors.ErrCodeLocked, "cannot lock data directory", err).WithDetail("path", dir)
	}
	if !ok {
		return nil, bderrors.New(bderrors.ErrCodeLocked, "a sync is updating the catalog", nil).
			WithDetail("path", dir).
			WithSuggestion("try again when 'bibdex sync' has finished")
	}
	return l, nil
}
