// Package config loads runtime configuration from the environment and builds
// the process logger.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/warp/leave-ledger/ledger"
)

// Config holds runtime configuration for the server.
type Config struct {
	Addr            string        `envconfig:"APP_ADDR" default:":8080"`
	DBPath          string        `envconfig:"DB_PATH" default:"./data/leave.db"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// LedgerStart is the first month accrued for anyone, YYYY-MM-DD. Empty
	// means accrual starts from each employment start date.
	LedgerStart string `envconfig:"LEDGER_START"`

	// AccrualRefreshInterval runs the all-employee accrual refresh on a
	// ticker. Zero disables it.
	AccrualRefreshInterval time.Duration `envconfig:"ACCRUAL_REFRESH_INTERVAL" default:"0"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if _, err := c.LedgerStartDate(); err != nil {
		return err
	}
	if c.AccrualRefreshInterval < 0 {
		return fmt.Errorf("ACCRUAL_REFRESH_INTERVAL must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// LedgerStartDate parses LedgerStart. The zero time means unset.
func (c *Config) LedgerStartDate() (time.Time, error) {
	if c.LedgerStart == "" {
		return time.Time{}, nil
	}
	t, err := ledger.ParseDate(c.LedgerStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("LEDGER_START: %w", err)
	}
	return t, nil
}
