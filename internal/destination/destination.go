// Package destination defines the narrow capability every backup
// destination exposes (spec §4.D, §9): deliver, list, delete — discriminated
// by a tagged variant at construction time rather than a class hierarchy.
package destination

import (
	"context"
	"time"

	"github.com/ckr3453/db-backup4j/internal/model"
)

// Tag identifies a destination kind in results and ordering.
type Tag string

const (
	TagLocal  Tag = "local"
	TagRemote Tag = "remote"
)

// ArtifactMetadata describes one artifact already present at a destination,
// as returned by List.
type ArtifactMetadata struct {
	Name         string
	SizeBytes    int64
	ModifiedAt   time.Time
}

// DeliveryResult reports the outcome of one Deliver call.
type DeliveryResult struct {
	Tag      Tag
	Artifact model.BackupArtifact
	Attempts int
	Err      error
}

// Destination is the capability every concrete destination implements.
type Destination interface {
	Tag() Tag
	Deliver(ctx context.Context, artifact model.BackupArtifact) DeliveryResult
	List(ctx context.Context) ([]ArtifactMetadata, error)
	Delete(ctx context.Context, name string) error
}

// retryDelays is the fixed exponential backoff schedule from spec §4.D:
// 1s, 2s, 4s before each of up to three retries that follow the first
// attempt.
var retryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// WithRetry runs op up to len(retryDelays)+1 times, retrying only when
// retryable(err) is true, sleeping retryDelays[attempt] between attempts.
// It returns the number of attempts made and the last error (nil on
// success). A terminal (non-retryable) error returns immediately. Shared
// by Local and the S3-compatible remote destination.
func WithRetry(ctx context.Context, retryable func(error) bool, op func() error) (attempts int, err error) {
	for i := 0; ; i++ {
		attempts++
		err = op()
		if err == nil {
			return attempts, nil
		}
		if !retryable(err) || i >= len(retryDelays) {
			return attempts, err
		}
		select {
		case <-time.After(retryDelays[i]):
		case <-ctx.Done():
			return attempts, ctx.Err()
		}
	}
}
