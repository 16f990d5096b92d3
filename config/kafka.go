package config

import (
	"strings"
	"time"
)

// KafkaConfig controls publishing of finished batch runs.
type KafkaConfig struct {
	Enabled      bool          `env:"ENABLED"       envDefault:"false"`
	Brokers      []string      `env:"BROKERS"       envDefault:"localhost:9092"`
	Topic        string        `env:"TOPIC"         envDefault:"items.batch-runs"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
}

// Sanitize trims brokers and disables publishing when nothing is left to publish to.
func (k *KafkaConfig) Sanitize() {
	brokers := k.Brokers[:0]
	for _, b := range k.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	k.Brokers = brokers
	k.Topic = strings.TrimSpace(k.Topic)
	if len(k.Brokers) == 0 || k.Topic == "" {
		k.Enabled = false
	}
	if k.WriteTimeout <= 0 {
		k.WriteTimeout = 10 * time.Second
	}
}
