package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ashab24/batch-job-orch/cmd/job/config"
	"github.com/Ashab24/batch-job-orch/lib/logger"
	"github.com/Ashab24/batch-job-orch/lib/objstore"
	"github.com/Ashab24/batch-job-orch/lib/rollup"
)

// The event rollup job. Runs once to completion: any failure exits non-zero
// so the platform records the run as failed; finding no eligible input is a
// normal, successful run.
func main() {
	if err := run(); err != nil {
		slog.Error("job failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	log := logger.New()
	slog.SetDefault(log)
	log.Info("event rollup job started")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Info("configuration loaded",
		"input_bucket", cfg.InputBucket,
		"output_bucket", cfg.OutputBucket,
		"input_prefix", cfg.InputPrefix,
		"lookback_hours", cfg.LookbackHours,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := objstore.NewGCS(ctx)
	if err != nil {
		return fmt.Errorf("connect to object storage: %w", err)
	}
	defer store.Close()

	job := rollup.NewJob(store, rollup.Config{
		InputBucket:   cfg.InputBucket,
		OutputBucket:  cfg.OutputBucket,
		InputPrefix:   cfg.InputPrefix,
		LookbackHours: cfg.LookbackHours,
	}, log)

	stats, err := job.Run(ctx)
	if err != nil {
		return err
	}

	log.Info("event rollup job completed",
		"files_processed", stats.FilesProcessed,
		"events", stats.Events,
		"summaries", stats.Summaries,
		"hours_written", stats.HoursWritten,
	)
	return nil
}
