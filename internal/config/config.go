// Package config loads and validates db-backup4j's YAML configuration file,
// mirroring the shape and defaulting behavior of the teacher's
// internal/config package but generalized to the full BackupConfig surface.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ckr3453/db-backup4j/internal/cron"
	"github.com/ckr3453/db-backup4j/internal/model"
)

// File is the on-disk YAML shape, keyed per spec §6's configuration surface.
type File struct {
	Database struct {
		URL                  string   `yaml:"url"`
		Username             string   `yaml:"username"`
		Password             string   `yaml:"password"`
		ExcludeSystemTables  *bool    `yaml:"excludeSystemTables"`
		IncludeTablePatterns []string `yaml:"includeTablePatterns"`
		ExcludeTablePatterns []string `yaml:"excludeTablePatterns"`
	} `yaml:"database"`

	Backup struct {
		Local struct {
			Enabled   bool   `yaml:"enabled"`
			Path      string `yaml:"path"`
			Retention int    `yaml:"retention"`
			Compress  bool   `yaml:"compress"`
		} `yaml:"local"`
		S3 struct {
			Enabled   bool   `yaml:"enabled"`
			Bucket    string `yaml:"bucket"`
			Prefix    string `yaml:"prefix"`
			Region    string `yaml:"region"`
			AccessKey string `yaml:"accessKey"`
			SecretKey string `yaml:"secretKey"`
		} `yaml:"s3"`
	} `yaml:"backup"`

	Schedule struct {
		Enabled  bool   `yaml:"enabled"`
		Cron     string `yaml:"cron"`
		Timezone string `yaml:"timezone"`
	} `yaml:"schedule"`

	History struct {
		DSN string `yaml:"dsn"`
	} `yaml:"history"`

	Notify struct {
		WebhookURL string `yaml:"webhookUrl"`
	} `yaml:"notify"`

	LockFile string `yaml:"lockFile"`
}

// candidatePaths are tried in order when no explicit path is given.
var candidatePaths = []string{
	"./db-backup4j.properties",
	"./db-backup4j.yaml",
	"./db-backup4j.yml",
}

// Discover returns the first candidate config path that exists.
func Discover() (string, error) {
	for _, p := range candidatePaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no configuration file found, tried: %s", strings.Join(candidatePaths, ", "))
}

// Load reads and parses a YAML configuration file. Properties-format
// parsing is an external collaborator per spec §1 and is not implemented
// here; a ".properties" path is rejected with a clear error instead of
// silently misparsing it as YAML.
func Load(path string) (*File, error) {
	if strings.HasSuffix(path, ".properties") {
		return nil, fmt.Errorf("properties-format configuration is not supported by this build; use YAML")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&f)
	applyDefaults(&f)

	return &f, nil
}

// applyEnvOverrides wires the handful of scalar fields most commonly
// overridden at deploy time. The ${VAR[:default]} interpolation engine
// itself is explicitly an external collaborator (spec §1); this is a
// plain 1:1 env-name-to-field override pass.
func applyEnvOverrides(f *File) {
	if v, ok := os.LookupEnv("DB_BACKUP4J_DATABASE_URL"); ok {
		f.Database.URL = v
	}
	if v, ok := os.LookupEnv("DB_BACKUP4J_DATABASE_USERNAME"); ok {
		f.Database.Username = v
	}
	if v, ok := os.LookupEnv("DB_BACKUP4J_DATABASE_PASSWORD"); ok {
		f.Database.Password = v
	}
	if v, ok := os.LookupEnv("DB_BACKUP4J_S3_ACCESS_KEY"); ok {
		f.Backup.S3.AccessKey = v
	}
	if v, ok := os.LookupEnv("DB_BACKUP4J_S3_SECRET_KEY"); ok {
		f.Backup.S3.SecretKey = v
	}
	if v, ok := os.LookupEnv("DB_BACKUP4J_SCHEDULE_CRON"); ok {
		f.Schedule.Cron = v
	}
	if v, ok := os.LookupEnv("DB_BACKUP4J_LOCAL_RETENTION"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			f.Backup.Local.Retention = n
		}
	}
}

func applyDefaults(f *File) {
	if f.Database.ExcludeSystemTables == nil {
		t := true
		f.Database.ExcludeSystemTables = &t
	}
	if f.LockFile == "" {
		f.LockFile = "/tmp/db-backup4j.lock"
	}
	if f.Backup.Local.Retention == 0 {
		f.Backup.Local.Retention = 7
	}
}

// ToBackupConfig converts the loaded file into the pipeline's BackupConfig.
func (f *File) ToBackupConfig() model.BackupConfig {
	excludeSystem := true
	if f.Database.ExcludeSystemTables != nil {
		excludeSystem = *f.Database.ExcludeSystemTables
	}

	return model.BackupConfig{
		Database: model.DatabaseConfig{
			URL:      f.Database.URL,
			Username: f.Database.Username,
			Password: f.Database.Password,
			Filter: model.TableFilter{
				IncludePatterns:     f.Database.IncludeTablePatterns,
				ExcludePatterns:     f.Database.ExcludeTablePatterns,
				ExcludeSystemTables: excludeSystem,
			},
		},
		Local: model.LocalDestinationConfig{
			Enabled:       f.Backup.Local.Enabled,
			Directory:     f.Backup.Local.Path,
			RetentionDays: f.Backup.Local.Retention,
			Compress:      f.Backup.Local.Compress,
		},
		Remote: model.RemoteDestinationConfig{
			Enabled:   f.Backup.S3.Enabled,
			Bucket:    f.Backup.S3.Bucket,
			Prefix:    f.Backup.S3.Prefix,
			Region:    f.Backup.S3.Region,
			AccessKey: f.Backup.S3.AccessKey,
			SecretKey: f.Backup.S3.SecretKey,
		},
		Schedule: model.ScheduleConfig{
			Enabled:  f.Schedule.Enabled,
			Cron:     f.Schedule.Cron,
			Timezone: f.Schedule.Timezone,
		},
		History: model.HistoryConfig{
			DSN: f.History.DSN,
		},
		Notify: model.NotifyConfig{
			WebhookURL: f.Notify.WebhookURL,
		},
	}
}

// Validate checks a BackupConfig against the invariants in spec §3,
// returning the aggregated list of problems rather than failing on the
// first one, per spec §4.G step 2.
func Validate(cfg model.BackupConfig) []error {
	var errs []error

	if !cfg.Local.Enabled && !cfg.Remote.Enabled {
		errs = append(errs, fmt.Errorf("at least one destination must be enabled"))
	}

	if cfg.Local.Enabled {
		if cfg.Local.Directory == "" {
			errs = append(errs, fmt.Errorf("backup.local.path must be set when backup.local.enabled is true"))
		}
		if cfg.Local.RetentionDays < 0 {
			errs = append(errs, fmt.Errorf("backup.local.retention must be >= 0"))
		}
	}

	if cfg.Remote.Enabled {
		for name, v := range map[string]string{
			"backup.s3.bucket":    cfg.Remote.Bucket,
			"backup.s3.region":    cfg.Remote.Region,
			"backup.s3.accessKey": cfg.Remote.AccessKey,
			"backup.s3.secretKey": cfg.Remote.SecretKey,
		} {
			if v == "" {
				errs = append(errs, fmt.Errorf("%s must be set when backup.s3.enabled is true", name))
			}
		}
	}

	if cfg.Database.URL == "" {
		errs = append(errs, fmt.Errorf("database.url must be set"))
	}

	if cfg.Schedule.Enabled {
		if _, err := cron.Parse(cfg.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Errorf("schedule.cron is invalid: %w", err))
		}
	}

	return errs
}
