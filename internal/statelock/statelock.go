// Package statelock holds the process-wide advisory lock on the state root.
// Exactly one daemon process may mutate the state tree (spec §4.1, §5);
// acquisition failure at startup is fatal.
package statelock

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld is returned by Acquire when another process already holds the lock.
var ErrHeld = errors.New("statelock: lock held by another instance")

const lockFileName = ".evobenchd.lock"

// Lock wraps an exclusive, non-blocking advisory lock on a file under the
// state root.
type Lock struct {
	flock *flock.Flock
}

// Acquire takes the exclusive lock on stateRoot. On failure (held elsewhere,
// or a filesystem error), the daemon must treat this as fatal per spec §5.
func Acquire(stateRoot string) (*Lock, error) {
	path := filepath.Join(stateRoot, lockFileName)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("statelock: try lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrHeld, path)
	}
	return &Lock{flock: fl}, nil
}

// Release gives up the lock. Safe to call once; further calls are no-ops.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("statelock: unlock: %w", err)
	}
	return nil
}
