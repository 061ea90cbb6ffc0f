package checksum

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/ckr3453/db-backup4j/internal/model"
)

const sampleSize = 1024

// Inspect performs the Integrity Validator's post-write inspection (spec
// §4.C part 2): existence, regular-file-ness, size, readability, and a
// dialect-agnostic SQL-content heuristic over the first 1024 bytes (after
// decompression for .gz/.gzip artifacts).
func Inspect(artifact model.BackupArtifact) model.ValidationOutcome {
	outcome := model.ValidationOutcome{Artifact: artifact}

	info, err := os.Stat(artifact.Path)
	if err != nil {
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("artifact does not exist: %v", err))
		return outcome
	}
	if !info.Mode().IsRegular() {
		outcome.Errors = append(outcome.Errors, "artifact is not a regular file")
		return outcome
	}
	if info.Size() == 0 {
		outcome.Errors = append(outcome.Errors, "artifact is empty")
		return outcome
	}
	if info.Size() < 100 {
		outcome.Warnings = append(outcome.Warnings, "artifact is suspiciously small (< 100 bytes)")
	}

	f, err := os.Open(artifact.Path)
	if err != nil {
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("artifact is not readable: %v", err))
		return outcome
	}
	defer f.Close()

	var sample []byte
	if isGzipName(artifact.Path) {
		sample, err = readDecompressedSample(f, sampleSize)
		if err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("failed to decompress sample: %v", err))
			return outcome
		}
	} else {
		sample, err = readSample(f, sampleSize)
		if err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("failed to read sample: %v", err))
			return outcome
		}
	}

	applySQLContentHeuristic(sample, &outcome)
	return outcome
}

func isGzipName(path string) bool {
	return strings.HasSuffix(path, ".gz") || strings.HasSuffix(path, ".gzip")
}

func readSample(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}

func readDecompressedSample(r io.Reader, n int) ([]byte, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return readSample(gz, n)
}

// applySQLContentHeuristic implements spec §4.C's sample heuristic: warn if
// neither CREATE TABLE/DROP/INSERT appears, error if ERROR or FAILED does.
func applySQLContentHeuristic(sample []byte, outcome *model.ValidationOutcome) {
	if bytes.Contains(sample, []byte("ERROR")) || bytes.Contains(sample, []byte("FAILED")) {
		outcome.Errors = append(outcome.Errors, "artifact content sample contains ERROR/FAILED markers")
		return
	}
	hasSQLMarker := bytes.Contains(sample, []byte("CREATE TABLE")) ||
		bytes.Contains(sample, []byte("DROP")) ||
		bytes.Contains(sample, []byte("INSERT"))
	if !hasSQLMarker {
		outcome.Warnings = append(outcome.Warnings, "artifact content sample does not look like SQL")
	}
}
