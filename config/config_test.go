package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - processor",
			input:    "processor",
			expected: map[ServiceMode]bool{ServiceModeProcessor: true},
		},
		{
			name:  "all services with spaces",
			input: " http , processor , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:      true,
				ServiceModeProcessor: true,
				ServiceModeReaper:    true,
			},
		},
		{
			name:     "duplicate services",
			input:    "http,http,reaper",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeReaper: true},
		},
		{name: "empty string", input: "", expectError: true},
		{name: "only spaces and commas", input: " , , ", expectError: true},
		{name: "invalid service name", input: "http,scheduler", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		services  string
		http      bool
		processor bool
		reaper    bool
	}{
		{"http", true, false, false},
		{"http,processor", true, true, false},
		{"reaper", false, false, true},
		{"invalid-service", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.services, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}
			if got := cfg.IsHTTPServerEnabled(); got != tt.http {
				t.Errorf("IsHTTPServerEnabled() = %v, want %v", got, tt.http)
			}
			if got := cfg.IsProcessorEnabled(); got != tt.processor {
				t.Errorf("IsProcessorEnabled() = %v, want %v", got, tt.processor)
			}
			if got := cfg.IsReaperEnabled(); got != tt.reaper {
				t.Errorf("IsReaperEnabled() = %v, want %v", got, tt.reaper)
			}
		})
	}
}

func TestAppConfig_ParseDefaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	want := ProcessorConfig{
		Concurrency:  10,
		QueueSize:    100,
		ItemDelay:    100 * time.Millisecond,
		SaveAttempts: 1,
		RetryBackoff: 200 * time.Millisecond,
	}
	if cfg.Processor != want {
		t.Fatalf("unexpected processor defaults:\nexpected: %#v\ngot:      %#v", want, cfg.Processor)
	}
	if cfg.Cache.ItemTTL != 5*time.Minute {
		t.Fatalf("unexpected cache ttl %v", cfg.Cache.ItemTTL)
	}
	if cfg.Kafka.Enabled {
		t.Fatal("kafka should be disabled by default")
	}
	if cfg.Services != "http" {
		t.Fatalf("unexpected services default %q", cfg.Services)
	}
}

func TestAppConfig_ParseProcessorAndKafkaEnv(t *testing.T) {
	t.Setenv("PROCESSOR_CONCURRENCY", "2")
	t.Setenv("PROCESSOR_ITEM_DELAY", "5ms")
	t.Setenv("PROCESSOR_SAVE_ATTEMPTS", "3")
	t.Setenv("PROCESSOR_INTERVAL", "1m")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("KAFKA_TOPIC", "runs")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Processor.Concurrency != 2 || cfg.Processor.ItemDelay != 5*time.Millisecond {
		t.Fatalf("unexpected processor config: %#v", cfg.Processor)
	}
	if cfg.Processor.SaveAttempts != 3 || cfg.Processor.Interval != time.Minute {
		t.Fatalf("unexpected processor config: %#v", cfg.Processor)
	}

	expected := KafkaConfig{
		Enabled:      true,
		Brokers:      []string{"broker-1:9092", "broker-2:9092"},
		Topic:        "runs",
		WriteTimeout: 10 * time.Second,
	}
	if !reflect.DeepEqual(cfg.Kafka, expected) {
		t.Fatalf("unexpected kafka configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Kafka)
	}
}

func TestProcessorConfig_Sanitize(t *testing.T) {
	cfg := ProcessorConfig{
		Concurrency:  0,
		QueueSize:    -5,
		ItemDelay:    -time.Second,
		SaveAttempts: 50,
		RetryBackoff: 0,
		Interval:     10 * time.Millisecond,
	}
	cfg.Sanitize()

	want := ProcessorConfig{
		Concurrency:  1,
		QueueSize:    1,
		ItemDelay:    0,
		SaveAttempts: 10,
		RetryBackoff: 200 * time.Millisecond,
		Interval:     time.Second,
	}
	if cfg != want {
		t.Fatalf("expected %#v, got %#v", want, cfg)
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{Interval: time.Second, BatchRunsMaxAge: time.Minute, BatchSize: 50000}
	cfg.Sanitize()

	if cfg.Interval != time.Minute {
		t.Fatalf("expected interval clamp, got %v", cfg.Interval)
	}
	if cfg.BatchRunsMaxAge != time.Hour {
		t.Fatalf("expected max age clamp, got %v", cfg.BatchRunsMaxAge)
	}
	if cfg.BatchSize != 10000 {
		t.Fatalf("expected batch size clamp, got %d", cfg.BatchSize)
	}
}

func TestKafkaConfig_SanitizeDisablesWithoutBrokers(t *testing.T) {
	cfg := KafkaConfig{Enabled: true, Brokers: []string{" ", ""}, Topic: "runs"}
	cfg.Sanitize()
	if cfg.Enabled {
		t.Fatal("expected kafka to be disabled without brokers")
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: " "}
	cfg.Sanitize()
	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{Enabled: true, StatsdAddress: " statsd:1234 "}
	cfg.Sanitize()
	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled:    true,
		RetryLimit: -1,
		Slack:      SlackNotificationConfig{Enabled: true, WebhookURL: " ", Username: ""},
	}
	cfg.Sanitize()

	if cfg.Timeout <= 0 {
		t.Fatalf("expected timeout to fall back to default, got %v", cfg.Timeout)
	}
	if cfg.RetryLimit != 0 {
		t.Fatalf("expected retry limit to be clamped to 0, got %d", cfg.RetryLimit)
	}
	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled without a webhook url")
	}
	if cfg.Slack.Username != "items-api" {
		t.Fatalf("expected username default, got %q", cfg.Slack.Username)
	}

	// Disabled top-level should disable child sinks.
	cfg = ObservabilityNotificationsConfig{
		Slack: SlackNotificationConfig{Enabled: true, WebhookURL: "https://hooks.slack.com/services/test"},
	}
	cfg.Sanitize()
	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled when top-level notifications disabled")
	}
}
