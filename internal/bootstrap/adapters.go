package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-items-api/config"
	"github.com/target/mmk-items-api/internal/adapters/processrunner"
	"github.com/target/mmk-items-api/internal/adapters/reaper"
	"github.com/target/mmk-items-api/internal/observability/statsd"
)

// ProcessorConfig contains configuration for the scheduled batch processor.
type ProcessorConfig struct {
	Processor processrunner.BatchProcessor
	Interval  time.Duration
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// RunProcessor starts the scheduled "process all" loop.
func RunProcessor(ctx context.Context, cfg ProcessorConfig) error {
	runner, err := processrunner.NewRunner(processrunner.RunnerOptions{
		Processor: cfg.Processor,
		Interval:  cfg.Interval,
		Logger:    cfg.Logger,
		Metrics:   cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create process runner: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
