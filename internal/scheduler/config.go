package scheduler

import (
	"time"

	"github.com/smallbiznis/tixsync/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	Enabled           bool
	RunInterval       time.Duration
	RecoveryThreshold time.Duration
	BatchSize         int
	JobTimeout        time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RunInterval:       time.Minute,
		RecoveryThreshold: 15 * time.Minute,
		BatchSize:         50,
		JobTimeout:        30 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:           cfg.Scheduler.Enabled,
		RunInterval:       cfg.Scheduler.RunInterval,
		RecoveryThreshold: cfg.Scheduler.RecoveryThreshold,
		BatchSize:         cfg.Scheduler.BatchSize,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = defaults.RecoveryThreshold
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
