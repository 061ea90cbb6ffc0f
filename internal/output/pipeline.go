// Package output implements the Output Pipeline (spec §4.B): it opens a
// write handle at the stable artifact path, optionally gzip-wraps it, and
// streams the Dump Engine's bytes through while fingerprinting inline.
package output

import (
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/ckr3453/db-backup4j/internal/model"
)

var nonArtifactChar = regexp.MustCompile(`[^A-Za-z0-9_-]`)
var runsOfUnderscore = regexp.MustCompile(`_+`)

// SanitizeDBName implements the stable sanitization rule from spec §4.B:
// replace any character outside [A-Za-z0-9_-] with "_", collapse runs of
// "_", trim leading/trailing "_", and fall back to "unknown" if empty.
func SanitizeDBName(name string) string {
	s := nonArtifactChar.ReplaceAllString(name, "_")
	s = runsOfUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// ArtifactName builds the stable "<db>_<YYYYMMDD>_<HHMMSS>.sql[.gz]" name
// (spec §6), in UTC, second precision.
func ArtifactName(dbName string, at time.Time, compress bool) string {
	base := fmt.Sprintf("%s_%s.sql", SanitizeDBName(dbName), at.UTC().Format("20060102_150405"))
	if compress {
		return base + ".gz"
	}
	return base
}

// Pipeline writes one dump stream to a local file, per spec §4.B.
type Pipeline struct {
	Algorithm model.ChecksumAlgorithm
}

// New creates a Pipeline that fingerprints with the given algorithm.
func New(algorithm model.ChecksumAlgorithm) *Pipeline {
	if algorithm == "" {
		algorithm = model.ChecksumSHA256
	}
	return &Pipeline{Algorithm: algorithm}
}

// Write copies everything src produces into a newly created file under dir,
// named per ArtifactName, optionally gzip-compressed, fingerprinting inline
// as bytes flow through (never re-reading the file for that purpose). On
// any error the partial file is removed and no BackupArtifact is returned.
func (p *Pipeline) Write(dir, dbName string, at time.Time, compress bool, src io.Reader) (model.BackupArtifact, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.BackupArtifact{}, fmt.Errorf("output: create directory: %w", err)
	}

	name := ArtifactName(dbName, at, compress)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return model.BackupArtifact{}, fmt.Errorf("output: open %s: %w", path, err)
	}

	artifact, writeErr := p.writeInto(f, compress, src)
	closeErr := f.Close()

	if writeErr != nil || closeErr != nil {
		os.Remove(path)
		if writeErr != nil {
			return model.BackupArtifact{}, writeErr
		}
		return model.BackupArtifact{}, fmt.Errorf("output: close %s: %w", path, closeErr)
	}

	artifact.Path = path
	artifact.CreatedAt = at
	return artifact, nil
}

func (p *Pipeline) writeInto(f *os.File, compress bool, src io.Reader) (model.BackupArtifact, error) {
	h := newHash(p.Algorithm)

	// The fingerprint covers the bytes actually stored on disk: when
	// compressing, that means the gzip stream, not the plaintext.
	fileAndHash := io.MultiWriter(f, h)
	var dst io.Writer = fileAndHash
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(fileAndHash)
		dst = gz
	}

	start := time.Now()
	if _, err := io.Copy(dst, src); err != nil {
		return model.BackupArtifact{}, fmt.Errorf("output: copy: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return model.BackupArtifact{}, fmt.Errorf("output: close gzip writer: %w", err)
		}
	}
	elapsed := time.Since(start)

	info, err := f.Stat()
	if err != nil {
		return model.BackupArtifact{}, fmt.Errorf("output: stat: %w", err)
	}

	return model.BackupArtifact{
		SizeBytes: info.Size(),
		Checksum: &model.Checksum{
			Algorithm:     p.Algorithm,
			HexDigest:     fmt.Sprintf("%x", h.Sum(nil)),
			ComputedAt:    time.Now(),
			ComputationMS: elapsed.Milliseconds(),
			ObservedSize:  info.Size(),
		},
	}, nil
}

func newHash(alg model.ChecksumAlgorithm) hash.Hash {
	if alg == model.ChecksumMD5 {
		return md5.New()
	}
	return sha256.New()
}
