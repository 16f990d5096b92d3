// Package processrunner triggers "process all" batch runs on a fixed interval.
package processrunner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/target/mmk-items-api/internal/domain/model"
	obserrors "github.com/target/mmk-items-api/internal/observability/errors"
	"github.com/target/mmk-items-api/internal/observability/metrics"
	"github.com/target/mmk-items-api/internal/observability/statsd"
	"github.com/target/mmk-items-api/internal/service"
)

// BatchProcessor starts batch runs. *service.ItemProcessingService implements it.
type BatchProcessor interface {
	ProcessAll(ctx context.Context) *service.BatchHandle
}

// Runner calls ProcessAll on every tick and waits for the run to resolve
// before the next one, so runs started by the runner never overlap.
type Runner struct {
	processor BatchProcessor
	interval  time.Duration
	logger    *slog.Logger
	metrics   statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Processor BatchProcessor
	Interval  time.Duration
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// NewRunner creates a new process runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Processor == nil {
		return nil, errors.New("batch processor is required")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("process interval must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		processor: opts.Processor,
		interval:  opts.Interval,
		logger:    logger.With("component", "process_runner"),
		metrics:   opts.Metrics,
	}, nil
}

// Run ticks until ctx is cancelled. Returns nil on graceful shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting process runner", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "process runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			// Errors are already logged by the engine; keep ticking.
			_, _ = r.Tick(ctx)
		}
	}
}

// Tick runs one batch and waits for it. The handle always resolves, even when
// ctx is cancelled mid-run, so the wait is not bounded by ctx.
func (r *Runner) Tick(ctx context.Context) (*model.BatchRunSummary, error) {
	start := time.Now()
	h := r.processor.ProcessAll(ctx)
	<-h.Done()
	res, err := h.Result()

	var summary *model.BatchRunSummary
	if res != nil {
		summary = &res.Summary
	}
	r.emitTickMetrics(summary, time.Since(start), err)

	if err != nil {
		r.logger.ErrorContext(ctx, "scheduled batch run failed", "run_id", h.RunID(), "error", err)
		return summary, err
	}
	if summary != nil && summary.Failed > 0 {
		r.logger.WarnContext(ctx, "scheduled batch run finished with failures",
			"run_id", h.RunID(),
			"failed", summary.Failed,
			"total", summary.Total,
		)
	}
	return summary, nil
}

func (r *Runner) emitTickMetrics(summary *model.BatchRunSummary, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
	case summary == nil || summary.Total == 0:
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	r.metrics.Count("processor.tick", 1, tags)
	if elapsed > 0 {
		r.metrics.Timing("processor.tick_duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		r.metrics.Gauge("processor.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}
