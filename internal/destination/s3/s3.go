package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ckr3453/db-backup4j/internal/destination"
	"github.com/ckr3453/db-backup4j/internal/model"
)

// Destination delivers artifacts to an S3-compatible bucket via a
// single-part PUT, signed with AWS Signature V4. List and Delete are out
// of scope for this version (spec §4.D): remote lifecycle management is
// left to the bucket's own retention policy.
type Destination struct {
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string // host override, e.g. for S3-compatible providers; defaults to the AWS regional endpoint
	Client    *http.Client
}

// New constructs an S3 destination from remote config.
func New(cfg model.RemoteDestinationConfig) *Destination {
	return &Destination{
		Bucket:    cfg.Bucket,
		Prefix:    cfg.Prefix,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Client:    http.DefaultClient,
	}
}

func (d *Destination) Tag() destination.Tag { return destination.TagRemote }

func (d *Destination) host() string {
	if d.Endpoint != "" {
		return d.Endpoint
	}
	return fmt.Sprintf("%s.s3.%s.amazonaws.com", d.Bucket, d.Region)
}

func (d *Destination) objectKey(name string) string {
	if d.Prefix == "" {
		return name
	}
	return d.Prefix + "/" + name
}

// Deliver uploads artifact via a single signed PUT, retrying transport
// failures and 5xx responses per the shared backoff schedule (spec §4.D).
func (d *Destination) Deliver(ctx context.Context, artifact model.BackupArtifact) destination.DeliveryResult {
	key := d.objectKey(objectNameFromPath(artifact.Path))

	attempts, err := destination.WithRetry(ctx, isRetryableS3Err, func() error {
		return d.putObject(ctx, key, artifact.Path)
	})

	result := destination.DeliveryResult{Tag: destination.TagRemote, Attempts: attempts, Err: err}
	if err == nil {
		delivered := artifact
		delivered.DestinationTag = string(destination.TagRemote)
		result.Artifact = delivered
	}
	return result
}

// List is unsupported: v1 has no remote inventory responsibility.
func (d *Destination) List(ctx context.Context) ([]destination.ArtifactMetadata, error) {
	return nil, fmt.Errorf("s3: List is not supported")
}

// Delete is unsupported: v1 has no remote lifecycle responsibility.
func (d *Destination) Delete(ctx context.Context, name string) error {
	return fmt.Errorf("s3: Delete is not supported")
}

func (d *Destination) putObject(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("s3: open %s: %w", path, err)
	}
	defer f.Close()

	payload, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("s3: read %s: %w", path, err)
	}

	sum := sha256.Sum256(payload)
	payloadHash := hex.EncodeToString(sum[:])

	now := time.Now()
	host := d.host()
	uri := "/" + key

	headers := http.Header{}
	headers.Set("host", host)
	headers.Set("x-amz-content-sha256", payloadHash)
	headers.Set("content-type", "application/octet-stream")

	authorization, amzDate := Sign(SigningRequest{
		Method:      http.MethodPut,
		Host:        host,
		Path:        uri,
		Headers:     headers,
		PayloadHash: payloadHash,
		AccessKey:   d.AccessKey,
		SecretKey:   d.SecretKey,
		Region:      d.Region,
		Service:     "s3",
		Time:        now,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, "https://"+host+uri, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("s3: build request: %w", err)
	}
	req.ContentLength = int64(len(payload))
	req.Header.Set("Host", host)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("x-amz-date", amzDate)
	req.Header.Set("Authorization", authorization)

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &httpStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

type httpStatusError struct {
	StatusCode int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("s3: unexpected status %d", e.StatusCode)
}

// isRetryableS3Err retries transport errors and 5xx responses; 4xx
// failures (bad credentials, missing bucket) are terminal.
func isRetryableS3Err(err error) bool {
	if err == nil {
		return false
	}
	if statusErr, ok := err.(*httpStatusError); ok {
		return statusErr.StatusCode >= 500
	}
	return true
}

func objectNameFromPath(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
