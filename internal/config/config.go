package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config is the process configuration, loaded once at startup. The
// Optimization block carries the default run parameters; requests may
// override individual fields but never mutate these values.
type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		// WorkerCount bounds how many optimization runs execute at once,
		// counting both job submissions and synchronous /optimize calls.
		WorkerCount int `env:"OPT_WORKER_COUNT" envDefault:"2"`

		// SyncWaitTimeout caps how long a synchronous /optimize call
		// waits for its run to finish.
		SyncWaitTimeout time.Duration `env:"OPT_SYNC_WAIT_TIMEOUT" envDefault:"10m"`

		// Default run parameters. These reproduce the original demo
		// setup: the Alpine objective in 100 dimensions on a 2^12-point
		// QTT grid with a budget of 1e5 evaluations at rank 4, seed 42.
		Function   string  `env:"OPT_FUNCTION" envDefault:"alpine"`
		Dimensions int     `env:"OPT_DIMENSIONS" envDefault:"100"`
		LowerBound float64 `env:"OPT_LOWER_BOUND" envDefault:"-10"`
		UpperBound float64 `env:"OPT_UPPER_BOUND" envDefault:"10"`
		GridBase   int     `env:"OPT_GRID_BASE" envDefault:"2"`
		GridPower  int     `env:"OPT_GRID_POWER" envDefault:"12"`
		// GridSize switches to a direct grid with that many points per
		// dimension; 0 keeps the QTT base/power grid.
		GridSize  int   `env:"OPT_GRID_SIZE" envDefault:"0"`
		Evals     int   `env:"OPT_EVALS" envDefault:"100000"`
		Rank      int   `env:"OPT_RANK" envDefault:"4"`
		Seed      int64 `env:"OPT_SEED" envDefault:"42"`
		WithLog   bool  `env:"OPT_WITH_LOG" envDefault:"true"`
		WithCache bool  `env:"OPT_WITH_CACHE" envDefault:"true"`
	}
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: invalid HTTP port %d", c.HTTP.Port)
	}
	if c.Optimization.WorkerCount < 1 {
		return fmt.Errorf("config: worker count must be at least 1, got %d", c.Optimization.WorkerCount)
	}
	if c.Optimization.SyncWaitTimeout <= 0 {
		return fmt.Errorf("config: sync wait timeout must be positive, got %s", c.Optimization.SyncWaitTimeout)
	}
	return nil
}
