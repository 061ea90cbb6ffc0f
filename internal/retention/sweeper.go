// Package retention implements the local Retention Sweeper (spec §4.E):
// age-based cleanup of backup artifacts in the local destination
// directory, grounded on the teacher's EnforceRetention deadline
// calculation but generalized to local files with an injectable clock
// and an optional dry-run mode.
package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ckr3453/db-backup4j/internal/model"
)

// Clock abstracts time.Now so tests can control the sweep deadline.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Sweeper removes local backup artifacts older than RetentionDays.
type Sweeper struct {
	Directory     string
	RetentionDays int
	Clock         Clock
	DryRun        bool
}

// New constructs a Sweeper for the given local destination config.
func New(cfg model.LocalDestinationConfig, clock Clock) *Sweeper {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Sweeper{
		Directory:     cfg.Directory,
		RetentionDays: cfg.RetentionDays,
		Clock:         clock,
	}
}

// Result reports what Sweep did or would do.
type Result struct {
	Considered   int
	Deleted      []string
	FreedBytes   int64
	Errors       []error
}

// Sweep deletes (or, in DryRun mode, only reports) every artifact in
// Directory matching the stable FilePattern whose modification time is
// older than RetentionDays. RetentionDays <= 0 disables the sweep
// entirely, per spec.
func (s *Sweeper) Sweep() (Result, error) {
	var result Result

	if s.RetentionDays <= 0 {
		return result, nil
	}

	entries, err := os.ReadDir(s.Directory)
	if err != nil {
		return result, fmt.Errorf("retention: read dir %s: %w", s.Directory, err)
	}

	deadline := s.Clock.Now().Add(-time.Duration(s.RetentionDays) * 24 * time.Hour)

	for _, e := range entries {
		if e.IsDir() || !model.IsBackupFileName(e.Name()) {
			continue
		}
		result.Considered++

		info, err := e.Info()
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("retention: stat %s: %w", e.Name(), err))
			continue
		}
		if !info.ModTime().Before(deadline) {
			continue
		}

		path := filepath.Join(s.Directory, e.Name())
		if s.DryRun {
			result.Deleted = append(result.Deleted, path)
			result.FreedBytes += info.Size()
			continue
		}

		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("retention: delete %s: %w", path, err))
			continue
		}
		result.Deleted = append(result.Deleted, path)
		result.FreedBytes += info.Size()
	}

	return result, nil
}
