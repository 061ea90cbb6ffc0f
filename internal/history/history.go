// Package history implements the supplemented run-history store: each
// completed run is appended to a db_backup4j_runs table, mirroring the
// teacher's own pattern of logging BackupLog rows into the database
// being backed up. For MySQL sources this uses GORM, exactly as the
// teacher does; for PostgreSQL sources (for which the pack carries no
// GORM driver) it falls back to a hand-written INSERT over the same
// database/sql connection, keeping the feature available on both
// dialects without introducing an out-of-pack GORM driver.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ckr3453/db-backup4j/internal/dialect"
	"github.com/ckr3453/db-backup4j/internal/model"
)

// Run is one persisted row of run history.
type Run struct {
	ID         uint   `gorm:"primaryKey"`
	Status     string `gorm:"size:20;index"`
	SizeBytes  int64
	Checksum   string `gorm:"size:64"`
	ErrorCount int
	DurationMS int64
	StartedAt  time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (Run) TableName() string { return "db_backup4j_runs" }

// Store records finished BackupResults and lists them back out, backing
// the "db-backup4j history" subcommand (spec's supplemented features).
type Store interface {
	Record(ctx context.Context, result model.BackupResult) error
	List(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// Open constructs the Store appropriate for dbURL's dialect, backed by
// dsn, or a NoOpStore when dsn is empty (history recording disabled).
func Open(ctx context.Context, dbURL, dsn string) (Store, error) {
	if dsn == "" {
		return NoOpStore{}, nil
	}

	d, err := dialect.FromURL(dbURL)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	switch d.Name() {
	case model.DialectMySQL:
		return NewMySQLStore(dsn)
	case model.DialectPostgreSQL:
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("history: unsupported dialect %q", d.Name())
	}
}

// NewMySQLStore opens (and migrates) a run-history table inside the
// MySQL database being backed up, via GORM, as the teacher does.
func NewMySQLStore(dsn string) (Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("history: open mysql: %w", err)
	}
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &gormStore{db: db}, nil
}

type gormStore struct{ db *gorm.DB }

func (s *gormStore) Record(ctx context.Context, result model.BackupResult) error {
	row := toRun(result)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *gormStore) List(ctx context.Context, limit int) ([]Run, error) {
	var rows []Run
	err := s.db.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&rows).Error
	return rows, err
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewPostgresStore opens its own database/sql connection against dsn via
// lib/pq and records run history there through a hand-written INSERT,
// since the pack carries no GORM PostgreSQL driver to mirror
// NewMySQLStore's approach with.
func NewPostgresStore(ctx context.Context, dsn string) (Store, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open postgres: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping postgres: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS db_backup4j_runs (
		id SERIAL PRIMARY KEY,
		status VARCHAR(20) NOT NULL,
		size_bytes BIGINT NOT NULL,
		checksum VARCHAR(64) NOT NULL,
		error_count INT NOT NULL,
		duration_ms BIGINT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}
	return &postgresStore{conn: conn}, nil
}

type postgresStore struct{ conn *sql.DB }

func (s *postgresStore) Record(ctx context.Context, result model.BackupResult) error {
	row := toRun(result)
	const insert = `INSERT INTO db_backup4j_runs
		(status, size_bytes, checksum, error_count, duration_ms, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.conn.ExecContext(ctx, insert,
		row.Status, row.SizeBytes, row.Checksum, row.ErrorCount, row.DurationMS, row.StartedAt)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

func (s *postgresStore) List(ctx context.Context, limit int) ([]Run, error) {
	const q = `SELECT id, status, size_bytes, checksum, error_count, duration_ms, started_at, created_at
		FROM db_backup4j_runs ORDER BY started_at DESC LIMIT $1`
	rows, err := s.conn.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Status, &r.SizeBytes, &r.Checksum, &r.ErrorCount, &r.DurationMS, &r.StartedAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *postgresStore) Close() error { return s.conn.Close() }

func toRun(result model.BackupResult) Run {
	var sizeBytes int64
	var checksum string
	for _, a := range result.Artifacts {
		sizeBytes += a.SizeBytes
		if a.Checksum != nil && checksum == "" {
			checksum = a.Checksum.HexDigest
		}
	}
	return Run{
		Status:     string(result.Status),
		SizeBytes:  sizeBytes,
		Checksum:   checksum,
		ErrorCount: len(result.Errors),
		DurationMS: result.EndedAt.Sub(result.StartedAt).Milliseconds(),
		StartedAt:  result.StartedAt,
	}
}

// NoOpStore discards every result; used when history recording is not
// configured.
type NoOpStore struct{}

func (NoOpStore) Record(context.Context, model.BackupResult) error { return nil }
func (NoOpStore) List(context.Context, int) ([]Run, error)         { return nil, nil }
func (NoOpStore) Close() error                                     { return nil }
