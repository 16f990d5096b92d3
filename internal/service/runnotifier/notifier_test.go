package runnotifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-items-api/internal/domain/model"
	"github.com/target/mmk-items-api/internal/observability/notify"
)

func TestServiceNotifyBatchRun(t *testing.T) {
	var (
		mu       sync.Mutex
		received = map[string]notify.BatchRunPayload{}
	)
	capture := func(name string) notify.Sink {
		return notify.SinkFunc(func(_ context.Context, p notify.BatchRunPayload) error {
			mu.Lock()
			defer mu.Unlock()
			received[name] = p
			return nil
		})
	}

	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{Name: "slack", Sink: capture("slack")},
			{Name: "kafka", Sink: capture("kafka")},
			{Name: "skipped"},
		},
		Metadata: map[string]string{"env": "test"},
	})
	require.True(t, svc.Enabled())

	svc.NotifyBatchRun(context.Background(), model.BatchRunSummary{
		ID:       "run-1",
		Status:   model.BatchRunStatusPartialFailure,
		Total:    2,
		Failed:   1,
		Failures: []model.BatchFailure{{ItemID: "7", Reason: model.FailureNotFound}},
	})

	require.Len(t, received, 2)
	for _, p := range received {
		assert.Equal(t, "run-1", p.RunID)
		assert.Equal(t, notify.SeverityWarning, p.Severity)
		assert.Equal(t, "test", p.Metadata["env"])
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(Options{})
	assert.False(t, svc.Enabled())
	svc.NotifyBatchRun(context.Background(), model.BatchRunSummary{ID: "run-1"})
}

func TestServiceSinkErrorDoesNotStopOthers(t *testing.T) {
	var delivered bool
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{Name: "fail", Sink: notify.SinkFunc(func(context.Context, notify.BatchRunPayload) error {
				return errors.New("boom")
			})},
			{Sink: notify.SinkFunc(func(context.Context, notify.BatchRunPayload) error {
				delivered = true
				return nil
			})},
		},
	})

	svc.NotifyBatchRun(context.Background(), model.BatchRunSummary{ID: "run-1", Status: model.BatchRunStatusFailed})
	assert.True(t, delivered)
}
