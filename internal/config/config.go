// Package config loads the dispatcher's process configuration from the
// environment, once, at startup.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every environment-derived setting the dispatcher needs.
// It is parsed once in cmd/server and passed down explicitly; no non-test
// code in this repository reads os.Getenv directly.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `env:"ADDRESS" envDefault:":8080"`

	// DatabaseURL is the PostgreSQL DSN for the task store.
	DatabaseURL string `env:"DATABASE_URL,required"`

	// UsersURL, PaymentsURL and FlightsURL are the base URLs of the three
	// downstream services a task's "service" field can name.
	UsersURL    string `env:"USERS_URL"`
	PaymentsURL string `env:"PAYMENTS_URL"`
	FlightsURL  string `env:"FLIGHTS_URL"`

	// Testing disables worker startup and schema creation so that tests
	// can drive the queue protocol directly. Set via TESTING=1.
	Testing bool `env:"TESTING" envDefault:"false"`

	// WorkerCount is the number of concurrent claim/dispatch/finalize
	// loops the supervisor runs.
	WorkerCount int `env:"WORKER_COUNT" envDefault:"5"`

	// ClaimPollInterval is how long a worker sleeps after an empty claim
	// before trying again.
	ClaimPollInterval time.Duration `env:"CLAIM_POLL_INTERVAL" envDefault:"300ms"`

	// DispatchTimeout bounds each outbound HTTP call to a downstream
	// service.
	DispatchTimeout time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"10s"`

	// ShutdownTimeout bounds how long the supervisor waits for in-flight
	// work to drain on shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Database pool tuning, mirrored from pkg/db's own defaults so both
	// can be overridden from the same set of environment variables.
	DatabaseMaxConns          int32         `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
	DatabaseMinConns          int32         `env:"DATABASE_MIN_CONNS" envDefault:"5"`
	DatabaseRetries           int           `env:"DATABASE_RETRY_ATTEMPTS" envDefault:"3"`
	DatabaseRetryGap          time.Duration `env:"DATABASE_RETRY_INTERVAL" envDefault:"5s"`
	DatabaseHealthCheckPeriod time.Duration `env:"DATABASE_HEALTHCHECK_PERIOD" envDefault:"1m"`
	DatabaseMaxConnIdleTime   time.Duration `env:"DATABASE_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	DatabaseMaxConnLifetime   time.Duration `env:"DATABASE_MAX_CONN_LIFETIME" envDefault:"30m"`

	// SentryDSN enables error reporting from the logger when set; empty
	// disables it and the logger falls back to stdout-only.
	SentryDSN string `env:"SENTRY_DSN"`
}

// Load parses Config from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// ServiceBaseURL returns the configured base URL for a logical service
// name, and whether that service is recognized.
func (c *Config) ServiceBaseURL(service string) (string, bool) {
	switch service {
	case "user":
		return c.UsersURL, true
	case "payment":
		return c.PaymentsURL, true
	case "flight":
		return c.FlightsURL, true
	default:
		return "", false
	}
}
