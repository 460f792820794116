// Package config loads the client configuration.
//
// Sources, in descending priority:
//  1. an explicit path passed by the caller;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. environment variables only.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full client configuration.
type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	Backend BackendConfig `yaml:"backend"`
	Monitor MonitorConfig `yaml:"monitor"`
	Store   StoreConfig   `yaml:"store"`
	Events  EventsConfig  `yaml:"events"`
}

// BackendConfig points the client at the REST backend.
type BackendConfig struct {
	BaseURL             string        `yaml:"base_url" env:"BACKEND_BASE_URL" env-default:"http://localhost:8000"`
	RequestTimeout      time.Duration `yaml:"request_timeout" env:"BACKEND_REQUEST_TIMEOUT" env-default:"10s"`
	HealthTimeout       time.Duration `yaml:"health_timeout" env:"BACKEND_HEALTH_TIMEOUT" env-default:"5s"`
	SingleFlightRefresh bool          `yaml:"single_flight_refresh" env:"BACKEND_SINGLE_FLIGHT_REFRESH" env-default:"false"`
}

// MonitorConfig tunes the expiry monitor.
type MonitorConfig struct {
	CheckInterval    time.Duration `yaml:"check_interval" env:"MONITOR_CHECK_INTERVAL" env-default:"60s"`
	RenewalThreshold time.Duration `yaml:"renewal_threshold" env:"MONITOR_RENEWAL_THRESHOLD" env-default:"300s"`
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Backend  string `yaml:"backend" env:"STORE_BACKEND" env-default:"file"`
	FilePath string `yaml:"file_path" env:"STORE_FILE_PATH" env-default:".sessionkit.json"`
	RedisURL string `yaml:"redis_url" env:"STORE_REDIS_URL" env-default:"redis://localhost:6379/0"`
}

// EventsConfig tunes session event fan-out.
type EventsConfig struct {
	// RedisBridge mirrors session-terminated events onto a Redis stream for
	// sibling processes. Requires the redis store backend.
	RedisBridge bool `yaml:"redis_bridge" env:"EVENTS_REDIS_BRIDGE" env-default:"false"`
}

// Load reads the configuration from the resolved source.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat("local.yaml"); err == nil {
			path = "local.yaml"
		}
	}

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %q: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load that panics on failure, for main().
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}

	switch c.Store.Backend {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("store.backend must be file, redis or memory, got %q", c.Store.Backend)
	}

	if c.Events.RedisBridge && c.Store.Backend != "redis" {
		return fmt.Errorf("events.redis_bridge requires store.backend=redis")
	}

	return nil
}
