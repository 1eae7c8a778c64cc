package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Alerting.Threshold != 5 {
		t.Fatalf("default threshold = %v, want 5", cfg.Alerting.Threshold)
	}
	if cfg.Alerting.Workers != 1 {
		t.Fatalf("default workers = %d, want 1", cfg.Alerting.Workers)
	}
	if cfg.Market.CacheTTL != 5*time.Minute {
		t.Fatalf("default cache ttl = %s", cfg.Market.CacheTTL)
	}
	if cfg.Scheduler.Interval != time.Hour {
		t.Fatalf("default interval = %s", cfg.Scheduler.Interval)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
alerting:
  threshold: 7.5
  workers: 4
scoring:
  keywords:
    foreclosure: 4
    must sell: 3
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DISTRESS_MARKET_CACHE_BACKEND", "none")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Alerting.Threshold != 7.5 || cfg.Alerting.Workers != 4 {
		t.Fatalf("file values not applied: %+v", cfg.Alerting)
	}
	if cfg.Scoring.Keywords["foreclosure"] != 4 || cfg.Scoring.Keywords["must sell"] != 3 {
		t.Fatalf("keywords not loaded: %v", cfg.Scoring.Keywords)
	}
	if cfg.Market.CacheBackend != "none" {
		t.Fatalf("env override not applied: %q", cfg.Market.CacheBackend)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Scheduler: SchedulerConfig{Interval: time.Minute},
			Alerting:  AlertingConfig{Threshold: 5, Workers: 1},
			Export:    ExportConfig{MaxRows: 10},
		}
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	cases := map[string]func(*Config){
		"negative threshold": func(c *Config) { c.Alerting.Threshold = -1 },
		"zero workers":       func(c *Config) { c.Alerting.Workers = 0 },
		"negative keyword":   func(c *Config) { c.Scoring.Keywords = map[string]float64{"urgent": -2} },
		"unknown cache":      func(c *Config) { c.Market.CacheBackend = "memcached" },
		"email without host": func(c *Config) { c.Alerting.Email = EmailConfig{Enabled: true, From: "a@b"} },
		"sms without url":    func(c *Config) { c.Alerting.SMS = SMSConfig{Enabled: true} },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
