package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/target/mmk-items-api/internal/core"
	"github.com/target/mmk-items-api/internal/domain/model"
	"github.com/target/mmk-items-api/internal/observability/metrics"
	"github.com/target/mmk-items-api/internal/observability/statsd"
	"github.com/target/mmk-items-api/internal/workerpool"
)

// ErrSchedulingFailure marks a batch that could not hand its tasks to the pool.
var ErrSchedulingFailure = errors.New("scheduling failure")

// finalizeTimeout bounds persisting and announcing a finished run once the
// caller's context may already be gone.
const finalizeTimeout = 10 * time.Second

// ItemProcessor processes a single item. *ItemMutator implements it.
type ItemProcessor interface {
	ProcessOne(ctx context.Context, id string) model.ItemOutcome
}

// TaskSubmitter schedules tasks. *workerpool.Pool implements it.
type TaskSubmitter interface {
	Submit(ctx context.Context, task workerpool.Task) error
}

// BatchRunNotifier receives finished run summaries.
type BatchRunNotifier interface {
	NotifyBatchRun(ctx context.Context, summary model.BatchRunSummary)
}

// ItemProcessingServiceOptions groups dependencies for ItemProcessingService.
type ItemProcessingServiceOptions struct {
	Store     core.ItemStore // Required
	Processor ItemProcessor  // Required
	Pool      TaskSubmitter  // Required; its lifecycle belongs to the caller

	Runs     core.BatchRunRepository // Optional: persists run summaries
	Notifier BatchRunNotifier        // Optional
	Metrics  statsd.Sink             // Optional
	Logger   *slog.Logger            // Optional
	Now      func() time.Time        // Optional: clock override for tests
}

// ItemProcessingService runs "process all" batches over a bounded worker pool.
//
// Each call snapshots the item IDs, submits one task per ID and waits for all
// of them on a coordinator goroutine. Tasks only write their own outcome slot;
// aggregation happens once, after the barrier.
type ItemProcessingService struct {
	store     core.ItemStore
	processor ItemProcessor
	pool      TaskSubmitter
	runs      core.BatchRunRepository
	notifier  BatchRunNotifier
	metrics   statsd.Sink
	logger    *slog.Logger
	now       func() time.Time

	// inflight counts coordinators, including their bookkeeping after the
	// handle resolves.
	inflight sync.WaitGroup
}

// NewItemProcessingService constructs an ItemProcessingService.
func NewItemProcessingService(opts ItemProcessingServiceOptions) (*ItemProcessingService, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("item store is required")
	case opts.Processor == nil:
		return nil, errors.New("item processor is required")
	case opts.Pool == nil:
		return nil, errors.New("worker pool is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ItemProcessingService{
		store:     opts.Store,
		processor: opts.Processor,
		pool:      opts.Pool,
		runs:      opts.Runs,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "item_processing"),
		now:       now,
	}, nil
}

// ProcessAll starts a batch over every item that exists right now and returns
// immediately. ctx governs the per-item work; cancelling it interrupts the
// remaining items but the handle still resolves with a full result.
func (s *ItemProcessingService) ProcessAll(ctx context.Context) *BatchHandle {
	h := newBatchHandle(uuid.NewString())
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.coordinate(ctx, h)
	}()
	return h
}

// Drain waits until every run started by ProcessAll has finished, including
// persisting and announcing its summary. It returns ctx.Err() if ctx ends first.
func (s *ItemProcessingService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ItemProcessingService) coordinate(ctx context.Context, h *BatchHandle) {
	logger := s.logger.With("run_id", h.runID)
	started := s.now()

	ids, err := s.store.ListAllIDs(ctx)
	if err != nil {
		run := model.NewBatchRun(h.runID, nil, started)
		s.finish(ctx, logger, h, run, fmt.Errorf("snapshot item ids: %w", err))
		return
	}

	run := model.NewBatchRun(h.runID, ids, started)
	logger.InfoContext(ctx, "batch run started", "items", run.Size())

	runErr := s.dispatch(ctx, run)
	s.finish(ctx, logger, h, run, runErr)
}

// dispatch submits one task per snapshot slot and blocks until every accepted
// task has returned. Slots that never reach the pool are recorded here.
func (s *ItemProcessingService) dispatch(ctx context.Context, run *model.BatchRun) error {
	var (
		wg     sync.WaitGroup
		runErr error
	)

	for slot := range run.Size() {
		id := run.ItemID(slot)
		wg.Add(1)
		err := s.pool.Submit(ctx, func() {
			defer wg.Done()
			start := time.Now()
			outcome := s.processor.ProcessOne(ctx, id)
			run.Record(slot, outcome)
			metrics.EmitItemOutcome(s.metrics, metrics.ItemMetric{Outcome: outcome, Duration: time.Since(start)})
		})
		if err == nil {
			continue
		}
		wg.Done()

		reason := model.FailureInterrupted
		if !isContextCancellation(err) {
			reason = model.FailureNotScheduled
			runErr = fmt.Errorf("%w: %w", ErrSchedulingFailure, err)
		}
		for rest := slot; rest < run.Size(); rest++ {
			outcome := model.Failure(run.ItemID(rest), reason, err)
			run.Record(rest, outcome)
			metrics.EmitItemOutcome(s.metrics, metrics.ItemMetric{Outcome: outcome})
		}
		break
	}

	wg.Wait()
	return runErr
}

func (s *ItemProcessingService) finish(
	ctx context.Context,
	logger *slog.Logger,
	h *BatchHandle,
	run *model.BatchRun,
	runErr error,
) {
	result := run.Finalize(s.now(), runErr)
	summary := result.Summary

	for _, f := range result.Failures {
		logger.WarnContext(ctx, "item not processed",
			"item_id", f.ItemID,
			"reason", f.Reason,
			"error", f.Err,
		)
	}

	attrs := []any{
		"status", summary.Status,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration", summary.Duration(),
	}
	if runErr != nil {
		logger.ErrorContext(ctx, "batch run failed", append(attrs, "error", runErr)...)
	} else {
		logger.InfoContext(ctx, "batch run finished", attrs...)
	}

	h.resolve(result, runErr)

	// Bookkeeping follows the handle and must land even if ctx is gone.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if s.runs != nil {
		if err := s.runs.Create(bg, &summary); err != nil {
			logger.ErrorContext(ctx, "persist batch run summary failed", "error", err)
		}
	}
	metrics.EmitBatchRun(s.metrics, summary)

	if s.notifier != nil {
		s.notifier.NotifyBatchRun(bg, summary)
	}
}
