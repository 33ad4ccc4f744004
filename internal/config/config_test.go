package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if s := cfg.Weights.Sum(); s != 1.0 {
		t.Errorf("default weights sum = %v, want 1.0", s)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
db_path: /tmp/qi-test.db
scrape:
  delay_ms: 100
  timeout_seconds: 10
  workers: 2
  user_agent: test-agent
risk_weights:
  cost: 0.4
  concentration: 0.3
  dependency: 0.2
  complexity: 0.1
risk_thresholds:
  low: 20
  medium: 40
  high: 60
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/qi-test.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Scrape.DelayMS != 100 || cfg.Scrape.Workers != 2 {
		t.Errorf("scrape config = %+v", cfg.Scrape)
	}
	if cfg.Weights.Cost != 0.4 {
		t.Errorf("weights = %+v", cfg.Weights)
	}
	if cfg.Thresholds.High != 60 {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
}

func TestLoadRejectsBadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
risk_weights:
  cost: 0.9
  concentration: 0.9
  dependency: 0.0
  complexity: 0.0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected weight-sum validation error")
	}
}

func TestEnvOverridesDBPath(t *testing.T) {
	t.Setenv(EnvDBPath, "/tmp/env-override.db")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/env-override.db" {
		t.Errorf("DBPath = %q, want env override", cfg.DBPath)
	}
}
