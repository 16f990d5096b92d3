package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-items-api/internal/domain/model"
)

func TestPayloadFromSummarySeverity(t *testing.T) {
	msg := "snapshot failed"
	tests := []struct {
		status model.BatchRunStatus
		errMsg *string
		want   string
	}{
		{model.BatchRunStatusCompleted, nil, SeverityInfo},
		{model.BatchRunStatusPartialFailure, nil, SeverityWarning},
		{model.BatchRunStatusFailed, &msg, SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			p := PayloadFromSummary(model.BatchRunSummary{ID: "r", Status: tt.status, Error: tt.errMsg})
			assert.Equal(t, tt.want, p.Severity)
			assert.Equal(t, "r", p.RunID)
			if tt.errMsg != nil {
				assert.Equal(t, msg, p.Error)
			}
		})
	}
}

func TestSinkFunc(t *testing.T) {
	var nilFn SinkFunc
	require.NoError(t, nilFn.SendBatchRun(context.Background(), BatchRunPayload{}))

	boom := errors.New("boom")
	fn := SinkFunc(func(context.Context, BatchRunPayload) error { return boom })
	require.ErrorIs(t, fn.SendBatchRun(context.Background(), BatchRunPayload{}), boom)
}
