// Package notify defines the payload and sink contract for batch run notifications.
package notify

import (
	"context"
	"time"

	"github.com/target/mmk-items-api/internal/domain/model"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// BatchRunPayload is what sinks receive when a batch run finishes.
type BatchRunPayload struct {
	RunID      string               `json:"run_id"`
	Status     model.BatchRunStatus `json:"status"`
	Total      int                  `json:"total"`
	Succeeded  int                  `json:"succeeded"`
	Failed     int                  `json:"failed"`
	Failures   []model.BatchFailure `json:"failures,omitempty"`
	Error      string               `json:"error,omitempty"`
	Severity   string               `json:"severity"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Metadata   map[string]string    `json:"metadata,omitempty"`
}

// PayloadFromSummary maps a persisted summary to a notification payload.
// Severity follows the run status.
func PayloadFromSummary(s model.BatchRunSummary) BatchRunPayload {
	p := BatchRunPayload{
		RunID:      s.ID,
		Status:     s.Status,
		Total:      s.Total,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		Failures:   s.Failures,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
	if s.Error != nil {
		p.Error = *s.Error
	}
	switch s.Status {
	case model.BatchRunStatusFailed:
		p.Severity = SeverityCritical
	case model.BatchRunStatusPartialFailure:
		p.Severity = SeverityWarning
	default:
		p.Severity = SeverityInfo
	}
	return p
}

// Sink describes a destination for batch run notifications.
type Sink interface {
	SendBatchRun(ctx context.Context, payload BatchRunPayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload BatchRunPayload) error

// SendBatchRun implements the Sink interface.
func (f SinkFunc) SendBatchRun(ctx context.Context, payload BatchRunPayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
