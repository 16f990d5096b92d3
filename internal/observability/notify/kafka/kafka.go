// Package kafka publishes batch run summaries to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/target/mmk-items-api/internal/observability/notify"
)

// messageWriter is the subset of *kafkago.Writer used by the sink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures the publisher.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Publisher is a notify.Sink that writes one message per batch run, keyed by run ID.
type Publisher struct {
	writer messageWriter
	topic  string
}

var _ notify.Sink = (*Publisher)(nil)

// NewPublisher builds a publisher backed by a kafka-go Writer.
func NewPublisher(cfg Config) (*Publisher, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return newPublisher(&kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafkago.RequireAll,
		Balancer:     &kafkago.Hash{},
		WriteTimeout: timeout,
	}, topic), nil
}

func newPublisher(w messageWriter, topic string) *Publisher {
	return &Publisher{writer: w, topic: topic}
}

// SendBatchRun implements notify.Sink.
func (p *Publisher) SendBatchRun(ctx context.Context, payload notify.BatchRunPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode batch run event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(payload.RunID),
		Value: data,
		Time:  payload.FinishedAt,
		Headers: []kafkago.Header{
			{Key: "event", Value: []byte("batch_run.finished")},
			{Key: "status", Value: []byte(payload.Status)},
		},
	}
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending writes and releases connections.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
