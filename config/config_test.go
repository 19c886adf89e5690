package config

import (
	"testing"
	"time"
)

func TestValidateFillsDefaults(t *testing.T) {
	var cfg Config
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.DBPath != "engine.db" {
		t.Errorf("DBPath = %q, want engine.db", cfg.DBPath)
	}
	if cfg.IngressAddr != ":7171" {
		t.Errorf("IngressAddr = %q, want :7171", cfg.IngressAddr)
	}
	if cfg.HTTPAddr != ":7172" {
		t.Errorf("HTTPAddr = %q, want :7172", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":7173" {
		t.Errorf("MetricsAddr = %q, want :7173", cfg.MetricsAddr)
	}
	if cfg.DefaultQueryLimit != 50 {
		t.Errorf("DefaultQueryLimit = %d, want 50", cfg.DefaultQueryLimit)
	}
	if cfg.SubscriptionQueueCapacity != 256 {
		t.Errorf("SubscriptionQueueCapacity = %d, want 256", cfg.SubscriptionQueueCapacity)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
	if cfg.IngressRateLimit == nil || *cfg.IngressRateLimit != 10000 {
		t.Errorf("IngressRateLimit = %v, want 10000", cfg.IngressRateLimit)
	}
	if cfg.IngressBurst != 1000 {
		t.Errorf("IngressBurst = %d, want 1000", cfg.IngressBurst)
	}
}

func TestValidateKeepsExplicitZeroRateLimit(t *testing.T) {
	zero := 0.0
	cfg := Config{IngressRateLimit: &zero}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.IngressRateLimit == nil || *cfg.IngressRateLimit != 0 {
		t.Errorf("IngressRateLimit = %v, want 0 (explicit disable preserved)", cfg.IngressRateLimit)
	}
}

func TestValidatePreservesExplicitValues(t *testing.T) {
	cfg := Config{DBPath: "custom.db", HTTPAddr: ":9999"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.DBPath != "custom.db" {
		t.Errorf("DBPath = %q, want custom.db (untouched)", cfg.DBPath)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q, want :9999 (untouched)", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":7173" {
		t.Errorf("MetricsAddr = %q, want default applied", cfg.MetricsAddr)
	}
}

func TestLoadWithoutFileAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.DBPath != "engine.db" {
		t.Errorf("DBPath = %q, want engine.db", cfg.DBPath)
	}
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	t.Setenv("ENGINE_DB_PATH", "from-env.db")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.DBPath != "from-env.db" {
		t.Errorf("DBPath = %q, want from-env.db", cfg.DBPath)
	}
}
