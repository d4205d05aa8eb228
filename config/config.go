package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL  string `env:"DATABASE_URL,required" validate:"required"`
	SchedulerURL string `env:"SCHEDULER_URL,required" validate:"required,url"`
	TriggerURL   string `env:"TRIGGER_URL,required" validate:"required,url"`

	// Empty RedisAddr falls back to in-memory checkpoints; acceptable as
	// long as full reconciliation runs often enough to bound drift.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Reconciler cadence
	SyncIntervalSec      int `env:"SYNC_INTERVAL_SEC" envDefault:"15" validate:"min=1,max=300"`
	ReconcileIntervalSec int `env:"RECONCILE_INTERVAL_SEC" envDefault:"600" validate:"min=30,max=86400"`
	RuleBatchSize        int `env:"RULE_BATCH_SIZE" envDefault:"200" validate:"min=1,max=1000"`

	// Dispatcher cadence
	PollIntervalSec           int `env:"POLL_INTERVAL_SEC" envDefault:"5" validate:"min=1,max=300"`
	ScheduledPollIntervalSec  int `env:"SCHEDULED_POLL_INTERVAL_SEC" envDefault:"10" validate:"min=1,max=300"`
	FailedPollIntervalSec     int `env:"FAILED_POLL_INTERVAL_SEC" envDefault:"60" validate:"min=5,max=3600"`
	FailedPollStartupDelaySec int `env:"FAILED_POLL_STARTUP_DELAY_SEC" envDefault:"120" validate:"min=0,max=3600"`
	DispatchBatchSize         int `env:"DISPATCH_BATCH_SIZE" envDefault:"50" validate:"min=1,max=500"`
	MaxConcurrentDispatches   int `env:"MAX_CONCURRENT_DISPATCHES" envDefault:"10" validate:"min=1,max=100"`
	TriggerTimeoutSec         int `env:"TRIGGER_TIMEOUT_SEC" envDefault:"30" validate:"min=1,max=300"`

	// Reclaimer
	ReclaimIntervalSec int `env:"RECLAIM_INTERVAL_SEC" envDefault:"60" validate:"min=10,max=3600"`
	StuckTimeoutSec    int `env:"STUCK_TIMEOUT_SEC" envDefault:"300" validate:"min=60,max=86400"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
