// Package metrics holds the metric vocabulary shared by services.
package metrics

import (
	"maps"
	"time"

	"github.com/target/mmk-items-api/internal/domain/model"
	obserrors "github.com/target/mmk-items-api/internal/observability/errors"
	"github.com/target/mmk-items-api/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// ItemMetric captures one per-item outcome.
type ItemMetric struct {
	Outcome  model.ItemOutcome
	Duration time.Duration
}

// EmitItemOutcome emits batch.item and batch.item_duration.
func EmitItemOutcome(sink statsd.Sink, in ItemMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": ResultSuccess}
	if !in.Outcome.Succeeded() {
		tags["result"] = ResultError
		tags["reason"] = string(in.Outcome.Reason)
		if class := obserrors.Classify(in.Outcome.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("batch.item", 1, tags)
	if in.Duration > 0 {
		sink.Timing("batch.item_duration", in.Duration, CloneTags(tags))
	}
}

// EmitBatchRun emits batch.run, batch.run_duration and the batch.run_items gauges.
func EmitBatchRun(sink statsd.Sink, summary model.BatchRunSummary) {
	if sink == nil {
		return
	}

	tags := map[string]string{"status": string(summary.Status)}
	sink.Count("batch.run", 1, tags)
	if d := summary.Duration(); d > 0 {
		sink.Timing("batch.run_duration", d, CloneTags(tags))
	}

	for kind, n := range map[string]int{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	} {
		sink.Gauge("batch.run_items", float64(n), map[string]string{"kind": kind})
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
