// Package orchestrator ties the whole pipeline together (spec §4.F): it
// validates configuration, holds the single-worker-slot lock, runs the
// dump/output/checksum/delivery/validation/retention stages once, and
// aggregates everything into a BackupResult. Its run loop is grounded
// on the teacher's Manager.Run, generalized from "one row per MySQL
// database on one server" to "one dump of one configured database,
// delivered to however many destinations are enabled".
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ckr3453/db-backup4j/internal/checksum"
	"github.com/ckr3453/db-backup4j/internal/config"
	"github.com/ckr3453/db-backup4j/internal/destination"
	"github.com/ckr3453/db-backup4j/internal/destination/s3"
	"github.com/ckr3453/db-backup4j/internal/dialect"
	"github.com/ckr3453/db-backup4j/internal/dump"
	"github.com/ckr3453/db-backup4j/internal/history"
	"github.com/ckr3453/db-backup4j/internal/lock"
	"github.com/ckr3453/db-backup4j/internal/model"
	"github.com/ckr3453/db-backup4j/internal/notify"
	"github.com/ckr3453/db-backup4j/internal/output"
	"github.com/ckr3453/db-backup4j/internal/retention"
)

// Orchestrator owns one BackupConfig's lifecycle: source connection,
// destinations, history, and notifications.
type Orchestrator struct {
	Config       model.BackupConfig
	LockFile     string
	Checksum     model.ChecksumAlgorithm
	Destinations []destination.Destination
	History      history.Store
	Notifier     notify.Notifier
}

// New validates cfg and constructs an Orchestrator wired to the
// destinations its config enables. It does not open the source
// connection; that happens per-run in Run, so a scheduled orchestrator
// never holds the connection across sleeps.
func New(cfg model.BackupConfig, lockFile string, checksumAlg model.ChecksumAlgorithm) (*Orchestrator, error) {
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("orchestrator: invalid configuration: %w", joinErrors(errs))
	}

	var dests []destination.Destination
	if cfg.Local.Enabled {
		dests = append(dests, destination.NewLocal(cfg.Local.Directory))
	}
	if cfg.Remote.Enabled {
		dests = append(dests, s3.New(cfg.Remote))
	}

	store, err := history.Open(context.Background(), cfg.Database.URL, cfg.History.DSN)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: failed to open history store: %w", err)
	}

	return &Orchestrator{
		Config:       cfg,
		LockFile:     lockFile,
		Checksum:     checksumAlg,
		Destinations: dests,
		History:      store,
		Notifier:     notify.NewWebhook(cfg.Notify.WebhookURL),
	}, nil
}

func joinErrors(errs []error) error {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return fmt.Errorf("%s", msg)
}

// Run executes exactly one pipeline pass: dump, write, fingerprint,
// deliver, validate, sweep, log, notify. It acquires the orchestrator's
// lock for the duration of the run so a second concurrent invocation
// fails fast instead of racing the same destination directory.
func (o *Orchestrator) Run(ctx context.Context) model.BackupResult {
	startedAt := time.Now()
	result := model.BackupResult{
		ID:        startedAt.UTC().Format("20060102T150405Z") + "-" + uuid.NewString(),
		StartedAt: startedAt,
	}
	defer func() {
		result.EndedAt = time.Now()
		result.DeriveStatus()
		if err := o.History.Record(ctx, result); err != nil {
			log.Printf("orchestrator: failed to record history: %v", err)
		}
		if err := o.Notifier.NotifyResult(result); err != nil {
			log.Printf("orchestrator: failed to notify: %v", err)
		}
	}()

	unlock, err := lock.Acquire(o.LockFile)
	if err != nil {
		result.Errors = append(result.Errors, model.RunError{
			Kind: model.ErrSchedulerFailed, Message: "failed to acquire run lock", Cause: err, OccurredAt: time.Now(),
		})
		return result
	}
	defer unlock()

	artifact, err := o.dumpAndWrite(ctx)
	if err != nil {
		result.Errors = append(result.Errors, model.RunError{
			Kind: model.ErrDumpFailed, Message: "dump failed", Cause: err, OccurredAt: time.Now(),
		})
		return result
	}
	// When the local destination is enabled, the staging file was written
	// directly into its directory and IS the delivered artifact; only a
	// scratch file used solely to reach a remote destination gets cleaned up.
	if !o.Config.Local.Enabled {
		defer os.Remove(artifact.Path)
	}

	for _, d := range o.Destinations {
		delivery := d.Deliver(ctx, artifact)
		if delivery.Err != nil {
			result.Errors = append(result.Errors, model.RunError{
				DestinationTag: string(delivery.Tag),
				Kind:           model.ErrDeliveryFailed,
				Message:        fmt.Sprintf("delivery to %s failed after %d attempts", delivery.Tag, delivery.Attempts),
				Cause:          delivery.Err,
				OccurredAt:     time.Now(),
			})
			continue
		}
		result.Artifacts = append(result.Artifacts, delivery.Artifact)
		result.Validations = append(result.Validations, checksum.Inspect(delivery.Artifact))
	}

	if o.Config.Local.Enabled && o.Config.Local.RetentionDays > 0 {
		sweeper := retention.New(o.Config.Local, nil)
		if _, err := sweeper.Sweep(); err != nil {
			result.Errors = append(result.Errors, model.RunError{
				Kind: model.ErrRetentionFailed, Message: "retention sweep failed", Cause: err, OccurredAt: time.Now(),
			})
		}
	}

	return result
}

// dumpAndWrite opens the source connection, streams the dump through
// the output pipeline (compressing and fingerprinting inline), and
// returns the written artifact. The caller owns deleting the local
// staging file once every destination has consumed it.
func (o *Orchestrator) dumpAndWrite(ctx context.Context) (model.BackupArtifact, error) {
	source, dbName, err := openSource(ctx, o.Config.Database)
	if err != nil {
		return model.BackupArtifact{}, err
	}
	defer source.Close()

	engine := dump.New(source, o.Config.Database.Filter)

	pr, pw := io.Pipe()
	errCh := make(chan error, 1)
	go func() {
		dumpErr := engine.Dump(ctx, pw)
		errCh <- dumpErr
		// CloseWithError propagates a mid-stream failure to the reader as a
		// read error rather than a clean EOF, so the output pipeline never
		// promotes a truncated dump as a finished artifact.
		pw.CloseWithError(dumpErr)
	}()

	stagingDir := o.Config.Local.Directory
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}

	pipeline := output.New(o.Checksum)
	artifact, writeErr := pipeline.Write(stagingDir, dbName, time.Now(), o.Config.Local.Compress, pr)

	if dumpErr := <-errCh; dumpErr != nil {
		return model.BackupArtifact{}, dumpErr
	}
	if writeErr != nil {
		return model.BackupArtifact{}, writeErr
	}
	return artifact, nil
}

func openSource(ctx context.Context, cfg model.DatabaseConfig) (dump.Source, string, error) {
	d, err := dialect.FromURL(cfg.URL)
	if err != nil {
		return nil, "", err
	}
	schema := dialect.SchemaFromURL(d, cfg.URL)

	switch d.Name() {
	case model.DialectMySQL:
		dsn, err := dump.BuildMySQLDSN(cfg)
		if err != nil {
			return nil, "", err
		}
		src, err := dump.OpenMySQL(ctx, dsn, schema)
		return src, schema, err
	case model.DialectPostgreSQL:
		src, err := dump.OpenPostgres(ctx, dump.BuildPostgresURL(cfg), schema)
		return src, schema, err
	default:
		return nil, "", fmt.Errorf("orchestrator: unsupported dialect %q", d.Name())
	}
}
