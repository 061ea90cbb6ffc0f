// Command db-backup4j runs the backup pipeline, once or on a cron
// schedule, per a YAML configuration file. Its subcommand shape is
// grounded on the teacher's own cmd/backup/main.go.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/ckr3453/db-backup4j/internal/config"
	"github.com/ckr3453/db-backup4j/internal/cron"
	"github.com/ckr3453/db-backup4j/internal/history"
	"github.com/ckr3453/db-backup4j/internal/model"
	"github.com/ckr3453/db-backup4j/internal/orchestrator"
	"github.com/ckr3453/db-backup4j/internal/scheduler"
)

func main() {
	cmd := &cli.Command{
		Name:  "db-backup4j",
		Usage: "Relational database backup, scheduling, retention and integrity validation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			runCommand,
			validateConfigCommand,
			historyCommand,
		},
	}

	// A SIGINT/SIGTERM cancels ctx so a scheduled run's stop() is actually
	// reachable instead of running until the process is killed outright.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

var runCommand = &cli.Command{
	Name:   "run",
	Usage:  "Run the backup pipeline once, or scheduled if schedule.enabled is set",
	Action: runAction,
}

var validateConfigCommand = &cli.Command{
	Name:   "validate-config",
	Usage:  "Load and validate the configuration file without running a backup",
	Action: validateConfigAction,
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "List recorded backup runs from the configured history store",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Value: 20,
			Usage: "Maximum number of runs to show",
		},
	},
	Action: historyAction,
}

func loadConfig(c *cli.Command) (model.BackupConfig, string, error) {
	path := c.String("config")
	if path == "" {
		var err error
		path, err = config.Discover()
		if err != nil {
			return model.BackupConfig{}, "", err
		}
	}

	file, err := config.Load(path)
	if err != nil {
		return model.BackupConfig{}, "", fmt.Errorf("failed to load config: %w", err)
	}
	return file.ToBackupConfig(), file.LockFile, nil
}

func validateConfigAction(ctx context.Context, c *cli.Command) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}

	errs := config.Validate(cfg)
	if len(errs) == 0 {
		fmt.Println("configuration is valid")
		return nil
	}

	for _, e := range errs {
		fmt.Fprintln(os.Stderr, "error:", e)
	}
	return fmt.Errorf("configuration is invalid: %d problem(s) found", len(errs))
}

func runAction(ctx context.Context, c *cli.Command) error {
	cfg, lockFile, err := loadConfig(c)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(cfg, lockFile, model.ChecksumSHA256)
	if err != nil {
		return err
	}

	if !cfg.Schedule.Enabled {
		result := orch.Run(ctx)
		logRunResult(result)
		if result.Status == model.StatusFailed {
			return fmt.Errorf("backup run failed")
		}
		return nil
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("invalid schedule.timezone %q: %w", cfg.Schedule.Timezone, err)
	}
	expr, err := cron.Parse(cfg.Schedule.Cron)
	if err != nil {
		return fmt.Errorf("invalid schedule.cron %q: %w", cfg.Schedule.Cron, err)
	}

	sched := scheduler.New(expr, loc, func(ctx context.Context) error {
		logRunResult(orch.Run(ctx))
		return nil
	})

	log.Printf("starting scheduled runs (%s, %s)", cfg.Schedule.Cron, cfg.Schedule.Timezone)
	sched.Start(ctx)
	<-ctx.Done()
	log.Printf("shutdown signal received, stopping scheduler")
	sched.Stop()
	sched.AwaitTermination()
	return nil
}

func historyAction(ctx context.Context, c *cli.Command) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}

	store, err := history.Open(ctx, cfg.Database.URL, cfg.History.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx, int(c.Int("limit")))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("%s  %-18s  %12s  %3d error(s)  %8dms  %s\n",
			r.StartedAt.UTC().Format(time.RFC3339), r.Status, humanize.Bytes(uint64(r.SizeBytes)), r.ErrorCount, r.DurationMS, r.Checksum)
	}
	return nil
}

func logRunResult(result model.BackupResult) {
	var totalBytes uint64
	for _, a := range result.Artifacts {
		totalBytes += uint64(a.SizeBytes)
	}
	log.Printf("run %s finished with status %s (%d artifact(s), %s, %d error(s))",
		result.ID, result.Status, len(result.Artifacts), humanize.Bytes(totalBytes), len(result.Errors))
}
