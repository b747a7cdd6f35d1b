// Package config defines service configuration and its loading.
//
// Values are layered: defaults from New, an optional YAML file named by
// HACKJUDGE_CONFIG, then HACKJUDGE_* environment variables.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// EventID selects the event this process serves.
	EventID string `koanf:"event_id"`

	// WriteConcurrency bounds parallel judge assignment writes.
	WriteConcurrency int `koanf:"write_concurrency"`

	Store StoreConfig `koanf:"store"`
	Blob  BlobConfig  `koanf:"blob"`
	HTTP  HTTPConfig  `koanf:"http"`
	Admin AdminConfig `koanf:"admin"`
}

// AdminConfig names the admin judge created on first start. An empty Code
// disables bootstrapping.
type AdminConfig struct {
	Name string `koanf:"name"`
	Code string `koanf:"code"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver           string `koanf:"driver"`
	PostgresDSN      string `koanf:"postgres_dsn"`
	PostgresMaxConns int    `koanf:"postgres_max_conns"`
	RedisAddr        string `koanf:"redis_addr"`
	RedisPassword    string `koanf:"redis_password"`
	RedisDB          int    `koanf:"redis_db"`
	KeyPrefix        string `koanf:"key_prefix"`
}

// BlobConfig configures where submission images are written. An empty Dir
// keeps images in memory.
type BlobConfig struct {
	Dir     string `koanf:"dir"`
	BaseURL string `koanf:"base_url"`
}

// HTTPConfig configures the API surface.
type HTTPConfig struct {
	CORSOrigins    []string      `koanf:"cors_origins"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	SignInRate     float64       `koanf:"sign_in_rate"`
	SignInBurst    int           `koanf:"sign_in_burst"`
}

// New creates a Config with defaults. The context is reserved for loaders
// that need it.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":8080",
		EventID:          "hello-hacks",
		WriteConcurrency: runtime.NumCPU() * 2,
		Store: StoreConfig{
			Driver:           DriverMemory,
			PostgresMaxConns: 10,
			KeyPrefix:        "hackjudge",
		},
		Blob: BlobConfig{
			BaseURL: "/files",
		},
		HTTP: HTTPConfig{
			CORSOrigins:    []string{"http://localhost:3000"},
			RequestTimeout: 15 * time.Second,
			SignInRate:     1,
			SignInBurst:    5,
		},
		Admin: AdminConfig{
			Name: "Admin",
		},
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	if c.Addr == "" {
		problems = append(problems, "addr must not be empty")
	}
	if strings.TrimSpace(c.EventID) == "" {
		problems = append(problems, "event_id must not be empty")
	}
	if c.WriteConcurrency < 1 {
		problems = append(problems, "write_concurrency must be at least 1")
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			problems = append(problems, "store.postgres_dsn is required for the postgres driver")
		}
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			problems = append(problems, "store.redis_addr is required for the redis driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not one of memory, postgres, redis", c.Store.Driver))
	}
	if c.HTTP.RequestTimeout <= 0 {
		problems = append(problems, "http.request_timeout must be positive")
	}
	if c.HTTP.SignInRate <= 0 || c.HTTP.SignInBurst < 1 {
		problems = append(problems, "http.sign_in_rate and http.sign_in_burst must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
