package checksum

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ckr3453/db-backup4j/internal/model"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.sql")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestFingerprint_MatchesDirectSHA256(t *testing.T) {
	content := []byte("CREATE TABLE users (id INT);\nINSERT INTO users VALUES (1);\n")
	path := writeTempFile(t, content)

	sum, err := Fingerprint(path, model.ChecksumSHA256, nil)
	require.NoError(t, err)

	want := sha256.Sum256(content)
	require.Equal(t, fmt.Sprintf("%x", want), sum.HexDigest)
	require.Equal(t, int64(len(content)), sum.ObservedSize)
}

func TestFingerprint_IsDeterministic(t *testing.T) {
	content := bytesOfLength(5 * 1024 * 1024)
	path := writeTempFile(t, content)

	first, err := Fingerprint(path, model.ChecksumSHA256, nil)
	require.NoError(t, err)
	second, err := Fingerprint(path, model.ChecksumSHA256, nil)
	require.NoError(t, err)

	require.Equal(t, first.HexDigest, second.HexDigest)
}

func TestFingerprint_SingleBitFlipChangesDigest(t *testing.T) {
	content := bytesOfLength(1024)
	path := writeTempFile(t, content)

	before, err := Fingerprint(path, model.ChecksumSHA256, nil)
	require.NoError(t, err)

	flipped := append([]byte{}, content...)
	flipped[512] ^= 0x01
	require.NoError(t, os.WriteFile(path, flipped, 0o644))

	after, err := Fingerprint(path, model.ChecksumSHA256, nil)
	require.NoError(t, err)

	require.NotEqual(t, before.HexDigest, after.HexDigest)
}

func TestFingerprint_MD5Algorithm(t *testing.T) {
	content := []byte("hello")
	path := writeTempFile(t, content)

	sum, err := Fingerprint(path, model.ChecksumMD5, nil)
	require.NoError(t, err)
	require.Equal(t, model.ChecksumMD5, sum.Algorithm)
	require.Len(t, sum.HexDigest, 32)
}

func TestFingerprint_EmptyFile(t *testing.T) {
	path := writeTempFile(t, nil)

	sum, err := Fingerprint(path, model.ChecksumSHA256, nil)
	require.NoError(t, err)
	want := sha256.Sum256(nil)
	require.Equal(t, fmt.Sprintf("%x", want), sum.HexDigest)
	require.Equal(t, int64(0), sum.ObservedSize)
}

func TestFingerprint_MissingFileErrors(t *testing.T) {
	_, err := Fingerprint(filepath.Join(t.TempDir(), "missing.sql"), model.ChecksumSHA256, nil)
	require.Error(t, err)
}

func TestFingerprint_ReportsProgressAcrossMultipleChunks(t *testing.T) {
	// Crossing several chunkSmall (4 MiB) boundaries so progressEvery fires.
	content := bytesOfLength(9 * chunkSmall)
	path := writeTempFile(t, content)

	var calls []Progress
	_, err := Fingerprint(path, model.ChecksumSHA256, func(p Progress) {
		calls = append(calls, p)
	})
	require.NoError(t, err)
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]
	require.Equal(t, int64(len(content)), last.TotalBytes)
}

func bytesOfLength(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}
