package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeProcessor runs ProcessAll on a fixed interval.
	ServiceModeProcessor ServiceMode = "processor"
	// ServiceModeReaper prunes old batch run history.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeProcessor, ServiceModeReaper}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	if servicesStr == "" {
		return nil, errors.New("at least one service must be specified")
	}

	services := make(map[ServiceMode]bool)
	for part := range strings.SplitSeq(servicesStr, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		mode := ServiceMode(name)
		switch mode {
		case ServiceModeHTTP, ServiceModeProcessor, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, processor, reaper)", name)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}
	return services, nil
}

// ProcessorConfig configures the batch engine and its worker pool.
type ProcessorConfig struct {
	// Concurrency is the number of pool workers.
	Concurrency int `env:"PROCESSOR_CONCURRENCY" envDefault:"10"`

	// QueueSize is the pool's task buffer.
	QueueSize int `env:"PROCESSOR_QUEUE_SIZE" envDefault:"100"`

	// ItemDelay is the simulated work time per item.
	ItemDelay time.Duration `env:"PROCESSOR_ITEM_DELAY" envDefault:"100ms"`

	// SaveAttempts bounds how many times a failed save is tried. 1 disables retry.
	SaveAttempts int `env:"PROCESSOR_SAVE_ATTEMPTS" envDefault:"1"`

	// RetryBackoff is the first backoff between save attempts; it doubles each time.
	RetryBackoff time.Duration `env:"PROCESSOR_RETRY_BACKOFF" envDefault:"200ms"`

	// Interval triggers ProcessAll periodically when the processor service runs. 0 disables it.
	Interval time.Duration `env:"PROCESSOR_INTERVAL" envDefault:"0s"`
}

// Sanitize applies guardrails to processor configuration values.
func (p *ProcessorConfig) Sanitize() {
	p.Concurrency = min(max(p.Concurrency, 1), 1024)
	if p.QueueSize < 1 {
		p.QueueSize = 1
	}
	if p.ItemDelay < 0 {
		p.ItemDelay = 0
	}
	p.SaveAttempts = min(max(p.SaveAttempts, 1), 10)
	if p.RetryBackoff <= 0 {
		p.RetryBackoff = 200 * time.Millisecond
	}
	if p.Interval < 0 {
		p.Interval = 0
	}
	if p.Interval > 0 && p.Interval < time.Second {
		p.Interval = time.Second
	}
}

// ReaperConfig contains batch history reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// BatchRunsMaxAge is how long finished batch run summaries are kept.
	BatchRunsMaxAge time.Duration `env:"REAPER_BATCH_RUNS_MAX_AGE" envDefault:"720h"` // 30 days

	// BatchSize is the maximum number of rows to delete per statement.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.BatchRunsMaxAge < 1*time.Hour {
		r.BatchRunsMaxAge = 1 * time.Hour
	}
	r.BatchSize = min(max(r.BatchSize, 1), 10000)
}
