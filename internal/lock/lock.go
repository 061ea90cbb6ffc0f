// Package lock enforces the single-worker-slot guarantee the Orchestrator
// needs before starting a run (spec §4.F): only one db-backup4j process
// may be dumping a given database at a time.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Acquire attempts to take an exclusive, non-blocking lock at lockPath.
// It returns a release function and an error if the lock is already held
// by another process.
func Acquire(lockPath string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("lock: create directory for %s: %w", lockPath, err)
	}

	fileLock := flock.New(lockPath)

	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock: attempt lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock: %s is already held, another run may be in progress", lockPath)
	}

	return func() {
		_ = fileLock.Unlock()
	}, nil
}
