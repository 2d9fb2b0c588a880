package scheduler

import (
	"time"

	"github.com/smallbiznis/clarity/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	// RelayAfter is how long an event may stay pending before it is handed
	// to the publisher again.
	RelayAfter time.Duration
	// RelayMaxAge stops re-publishing events that have been pending longer.
	RelayMaxAge time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 5 * time.Minute,
		BatchSize:   100,
		RelayAfter:  15 * time.Minute,
		RelayMaxAge: 24 * time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: time.Duration(cfg.Relay.IntervalSecs) * time.Second,
		BatchSize:   cfg.Relay.BatchSize,
		RelayAfter:  time.Duration(cfg.Relay.AfterSecs) * time.Second,
		RelayMaxAge: time.Duration(cfg.Relay.MaxAgeSecs) * time.Second,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.RelayAfter <= 0 {
		c.RelayAfter = defaults.RelayAfter
	}
	if c.RelayMaxAge <= c.RelayAfter {
		c.RelayMaxAge = c.RelayAfter + defaults.RelayMaxAge
	}
	return c
}
