package core

import (
	"fmt"
	"strings"
	"time"
)

type OutboxConfig struct {
	BatchSize         int           `koanf:"batch_size" mapstructure:"batch_size"`
	MaxAttempts       int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
	Interval          time.Duration `koanf:"interval" mapstructure:"interval"`
	ProcessingTimeout time.Duration `koanf:"processing_timeout" mapstructure:"processing_timeout"`
}

type WebhookConfig struct {
	BatchSize          int           `koanf:"batch_size" mapstructure:"batch_size"`
	DefaultMaxAttempts int           `koanf:"default_max_attempts" mapstructure:"default_max_attempts"`
	DefaultTimeout     time.Duration `koanf:"default_timeout" mapstructure:"default_timeout"`
	DefaultBackoffBase time.Duration `koanf:"default_backoff_base" mapstructure:"default_backoff_base"`
	MaxBackoff         time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
	Interval           time.Duration `koanf:"interval" mapstructure:"interval"`
	FanoutBatchSize    int           `koanf:"fanout_batch_size" mapstructure:"fanout_batch_size"`
	ProcessingTimeout  time.Duration `koanf:"processing_timeout" mapstructure:"processing_timeout"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Outbox      OutboxConfig  `koanf:"outbox" mapstructure:"outbox"`
	Webhooks    WebhookConfig `koanf:"webhooks" mapstructure:"webhooks"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "delivery",
		Outbox: OutboxConfig{
			BatchSize:         50,
			MaxAttempts:       5,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        5 * time.Minute,
			Interval:          5 * time.Second,
			ProcessingTimeout: 5 * time.Minute,
		},
		Webhooks: WebhookConfig{
			BatchSize:          50,
			DefaultMaxAttempts: 5,
			DefaultTimeout:     10 * time.Second,
			DefaultBackoffBase: 30 * time.Second,
			MaxBackoff:         15 * time.Minute,
			Interval:           5 * time.Second,
			FanoutBatchSize:    100,
			ProcessingTimeout:  5 * time.Minute,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Outbox.BatchSize < 0 {
		return fmt.Errorf("core: outbox.batch_size must be >= 0")
	}
	if c.Outbox.MaxAttempts < 0 {
		return fmt.Errorf("core: outbox.max_attempts must be >= 0")
	}
	if c.Webhooks.BatchSize < 0 {
		return fmt.Errorf("core: webhooks.batch_size must be >= 0")
	}
	if c.Webhooks.DefaultMaxAttempts < 0 {
		return fmt.Errorf("core: webhooks.default_max_attempts must be >= 0")
	}
	return nil
}
