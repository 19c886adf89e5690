// Package config loads the engine's runtime configuration from an optional
// YAML file plus ENGINE_* environment overrides: a plain struct, populated
// by koanf, validated and defaulted by a single Validate call.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the engine's full runtime configuration.
type Config struct {
	// DBPath is the path to the SQLite-backed durable store.
	// Default: engine.db
	DBPath string `koanf:"db_path"`

	// IngressAddr is the listen address for the length-prefixed TCP
	// ingress listener.
	// Default: :7171
	IngressAddr string `koanf:"ingress_addr"`

	// IngressRateLimit bounds sustained ingested records per second per
	// connection (0 disables limiting). A pointer so Validate can tell
	// "unset" (nil, defaults to 10000) apart from an explicit 0.
	// Default: 10000
	IngressRateLimit *float64 `koanf:"ingress_rate_limit"`

	// IngressBurst is the token bucket burst size paired with
	// IngressRateLimit.
	// Default: 1000
	IngressBurst int `koanf:"ingress_burst"`

	// HTTPAddr is the listen address for the query HTTP API.
	// Default: :7172
	HTTPAddr string `koanf:"http_addr"`

	// MetricsAddr is the listen address Prometheus scrapes /metrics from.
	// Default: :7173
	MetricsAddr string `koanf:"metrics_addr"`

	// DefaultQueryLimit is defaulted by Validate and read by no other
	// package; queries without a limit use engine.DefaultLimit.
	// Default: 50
	DefaultQueryLimit int `koanf:"default_query_limit"`

	// SubscriptionQueueCapacity is defaulted by Validate and read by no
	// other package; subscription queues use subscription.QueueCapacity.
	// Default: 256
	SubscriptionQueueCapacity int `koanf:"subscription_queue_capacity"`

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// in-flight requests to drain.
	// Default: 10s
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Load reads configuration from an optional YAML file at path (skipped if
// path is empty; a path that cannot be loaded is an error) with ENGINE_*
// environment variables
// applied on top, then validates and defaults the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("ENGINE_", ".", envKeyTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func envKeyTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "ENGINE_"))
}

// Validate fills every unset field with its default. It never rejects a
// configuration outright; every field has a sane default.
func (cfg *Config) Validate() error {
	if cfg.DBPath == "" {
		cfg.DBPath = "engine.db"
	}
	if cfg.IngressAddr == "" {
		cfg.IngressAddr = ":7171"
	}
	if cfg.IngressRateLimit == nil {
		defaultRateLimit := 10000.0
		cfg.IngressRateLimit = &defaultRateLimit
	}
	if cfg.IngressBurst == 0 {
		cfg.IngressBurst = 1000
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":7172"
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":7173"
	}
	if cfg.DefaultQueryLimit == 0 {
		cfg.DefaultQueryLimit = 50
	}
	if cfg.SubscriptionQueueCapacity == 0 {
		cfg.SubscriptionQueueCapacity = 256
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return nil
}
