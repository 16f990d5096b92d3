package runnotifier

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/target/mmk-items-api/internal/domain/model"
	"github.com/target/mmk-items-api/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the run notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Metadata is attached to every payload, e.g. environment or hostname.
	Metadata map[string]string
}

// Service dispatches finished batch runs to all registered sinks.
type Service struct {
	logger   *slog.Logger
	sinks    []SinkRegistration
	metadata map[string]string
}

// NewService constructs a run notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name: name,
			Sink: entry.Sink,
		})
	}

	return &Service{
		logger:   logger.With("component", "run_notifier"),
		sinks:    sinks,
		metadata: maps.Clone(opts.Metadata),
	}
}

// NotifyBatchRun fans the run summary out to all sinks and waits for them.
// Delivery errors are logged, never returned.
func (s *Service) NotifyBatchRun(ctx context.Context, summary model.BatchRunSummary) {
	if len(s.sinks) == 0 {
		return
	}

	payload := notify.PayloadFromSummary(summary)
	if len(s.metadata) > 0 {
		payload.Metadata = maps.Clone(s.metadata)
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendBatchRun(ctx, payload); err != nil {
				s.logger.ErrorContext(ctx, "run notifier delivery error",
					"sink", entry.Name,
					"run_id", payload.RunID,
					"status", payload.Status,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}
