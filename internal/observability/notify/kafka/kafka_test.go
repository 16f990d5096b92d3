package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-items-api/internal/domain/model"
	"github.com/target/mmk-items-api/internal/observability/notify"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewPublisherValidation(t *testing.T) {
	_, err := NewPublisher(Config{Topic: "batch-runs"})
	require.Error(t, err)

	_, err = NewPublisher(Config{Brokers: []string{" ", ""}, Topic: "batch-runs"})
	require.Error(t, err)

	_, err = NewPublisher(Config{Brokers: []string{"localhost:9092"}})
	require.Error(t, err)

	p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "batch-runs"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestSendBatchRun(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, "batch-runs")

	finished := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	payload := notify.BatchRunPayload{
		RunID:      "run-1",
		Status:     model.BatchRunStatusCompleted,
		Total:      2,
		Succeeded:  2,
		FinishedAt: finished,
	}
	require.NoError(t, p.SendBatchRun(context.Background(), payload))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "run-1", string(msg.Key))
	assert.True(t, msg.Time.Equal(finished))

	var decoded notify.BatchRunPayload
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, payload.RunID, decoded.RunID)
	assert.Equal(t, 2, decoded.Succeeded)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "COMPLETED", headers["status"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestSendBatchRunWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := newPublisher(&fakeWriter{err: boom}, "batch-runs")

	err := p.SendBatchRun(context.Background(), notify.BatchRunPayload{RunID: "r"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "batch-runs")
}
