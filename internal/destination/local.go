package destination

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ckr3453/db-backup4j/internal/model"
)

// Local is the local-filesystem destination (spec §4.D). Deliver is a
// no-op if the artifact is already at the target path, otherwise a
// rename-or-copy; List enumerates the directory for FilePattern matches;
// Delete unlinks.
type Local struct {
	Directory string
}

// NewLocal creates a Local destination rooted at dir.
func NewLocal(dir string) *Local { return &Local{Directory: dir} }

func (l *Local) Tag() Tag { return TagLocal }

func (l *Local) Deliver(ctx context.Context, artifact model.BackupArtifact) DeliveryResult {
	target := filepath.Join(l.Directory, filepath.Base(artifact.Path))

	attempts, err := WithRetry(ctx, isRetryableLocalErr, func() error {
		if samePath(artifact.Path, target) {
			return nil
		}
		if err := os.MkdirAll(l.Directory, 0o755); err != nil {
			return err
		}
		if err := os.Rename(artifact.Path, target); err != nil {
			return copyFile(artifact.Path, target)
		}
		return nil
	})

	result := DeliveryResult{Tag: TagLocal, Attempts: attempts, Err: err}
	if err == nil {
		delivered := artifact
		delivered.Path = target
		delivered.DestinationTag = string(TagLocal)
		result.Artifact = delivered
	}
	return result
}

func (l *Local) List(ctx context.Context) ([]ArtifactMetadata, error) {
	entries, err := os.ReadDir(l.Directory)
	if err != nil {
		return nil, fmt.Errorf("local: read dir %s: %w", l.Directory, err)
	}

	var out []ArtifactMetadata
	for _, e := range entries {
		if e.IsDir() || !model.IsBackupFileName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, ArtifactMetadata{
			Name:       e.Name(),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	return out, nil
}

func (l *Local) Delete(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(l.Directory, name))
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// isRetryableLocalErr treats any local filesystem error as non-retryable:
// disk and permission failures don't self-heal within a few seconds.
func isRetryableLocalErr(err error) bool { return false }
