package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-items-api/internal/domain/model"
	"github.com/target/mmk-items-api/internal/observability/statsd"
)

func TestEmitItemOutcome(t *testing.T) {
	var rec statsd.Recorder

	EmitItemOutcome(&rec, ItemMetric{Outcome: model.Success(&model.Item{ID: "1"}), Duration: time.Millisecond})
	EmitItemOutcome(&rec, ItemMetric{
		Outcome: model.Failure("2", model.FailureInterrupted, fmt.Errorf("delay: %w", context.Canceled)),
	})

	counts := rec.Named("batch.item")
	require.Len(t, counts, 2)
	assert.Equal(t, map[string]string{"result": ResultSuccess}, counts[0].Tags)
	assert.Equal(t, map[string]string{
		"result":      ResultError,
		"reason":      "interrupted",
		"error_class": "context_canceled",
	}, counts[1].Tags)

	// Only the first outcome carried a duration.
	assert.Len(t, rec.Named("batch.item_duration"), 1)
}

func TestEmitBatchRun(t *testing.T) {
	var rec statsd.Recorder
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	EmitBatchRun(&rec, model.BatchRunSummary{
		Status:     model.BatchRunStatusPartialFailure,
		Total:      3,
		Succeeded:  2,
		Failed:     1,
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
	})

	runs := rec.Named("batch.run")
	require.Len(t, runs, 1)
	assert.Equal(t, "PARTIAL_FAILURE", runs[0].Tags["status"])

	durations := rec.Named("batch.run_duration")
	require.Len(t, durations, 1)
	assert.InDelta(t, 2000.0, durations[0].Value, 0.001)

	gauges := map[string]float64{}
	for _, g := range rec.Named("batch.run_items") {
		gauges[g.Tags["kind"]] = g.Value
	}
	assert.Equal(t, map[string]float64{"total": 3, "succeeded": 2, "failed": 1}, gauges)
}

func TestEmitNilSink(t *testing.T) {
	EmitItemOutcome(nil, ItemMetric{Outcome: model.Failure("x", model.FailurePersistence, errors.New("db"))})
	EmitBatchRun(nil, model.BatchRunSummary{})
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1"}
	cp := CloneTags(src)
	cp["a"] = "2"
	assert.Equal(t, "1", src["a"])
}
