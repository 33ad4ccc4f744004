// Package config resolves pipeline configuration from a YAML file with
// environment overrides. Precedence: environment > file > built-in default.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Env override names.
const (
	EnvDBPath     = "QUEUEINSIGHT_DB"
	EnvConfigPath = "QUEUEINSIGHT_CONFIG"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.queueinsight/queueinsight.db"

// Weights is the risk-score weight vector. The four components are each on
// a 0-100 scale, so an overall score stays within 0-100 as long as the
// weights sum to 1.
type Weights struct {
	Cost          float64 `yaml:"cost"`
	Concentration float64 `yaml:"concentration"`
	Dependency    float64 `yaml:"dependency"`
	Complexity    float64 `yaml:"complexity"`
}

// Sum returns the total weight mass.
func (w Weights) Sum() float64 {
	return w.Cost + w.Concentration + w.Dependency + w.Complexity
}

// Thresholds bucket overall risk scores for operator summaries.
type Thresholds struct {
	Low    float64 `yaml:"low"`
	Medium float64 `yaml:"medium"`
	High   float64 `yaml:"high"`
}

// ScrapeConfig controls fetch behavior.
type ScrapeConfig struct {
	DelayMS        int    `yaml:"delay_ms"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Workers        int    `yaml:"workers"`
	UserAgent      string `yaml:"user_agent"`
	OutputDir      string `yaml:"output_dir"`
}

// Delay returns the minimum interval between successive fetches.
func (s ScrapeConfig) Delay() time.Duration {
	return time.Duration(s.DelayMS) * time.Millisecond
}

// Timeout returns the per-request timeout.
func (s ScrapeConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Config is the resolved pipeline configuration.
type Config struct {
	DBPath     string       `yaml:"db_path"`
	Scrape     ScrapeConfig `yaml:"scrape"`
	Weights    Weights      `yaml:"risk_weights"`
	Thresholds Thresholds   `yaml:"risk_thresholds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath: DefaultDBPath,
		Scrape: ScrapeConfig{
			DelayMS:        500,
			TimeoutSeconds: 30,
			Workers:        4,
			UserAgent:      "QueueInsight/1.0",
			OutputDir:      "output",
		},
		Weights: Weights{
			Cost:          0.35,
			Concentration: 0.25,
			Dependency:    0.25,
			Complexity:    0.15,
		},
		Thresholds: Thresholds{Low: 25, Medium: 50, High: 75},
	}
}

// Load resolves configuration: defaults, then the YAML file at path (or
// $QUEUEINSIGHT_CONFIG, or ~/.queueinsight/config.yaml when present), then
// environment overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".queueinsight", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if db := os.Getenv(EnvDBPath); db != "" {
		cfg.DBPath = db
	}
	cfg.DBPath = expandHome(cfg.DBPath)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate enforces invariants the pipeline depends on.
func (c Config) Validate() error {
	if math.Abs(c.Weights.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("risk weights must sum to 1.0, got %.4f", c.Weights.Sum())
	}
	if c.Weights.Cost < 0 || c.Weights.Concentration < 0 || c.Weights.Dependency < 0 || c.Weights.Complexity < 0 {
		return fmt.Errorf("risk weights must be non-negative")
	}
	if c.Scrape.DelayMS < 0 {
		return fmt.Errorf("scrape delay must be >= 0")
	}
	if c.Scrape.Workers < 1 {
		return fmt.Errorf("scrape workers must be >= 1")
	}
	if !(c.Thresholds.Low < c.Thresholds.Medium && c.Thresholds.Medium < c.Thresholds.High) {
		return fmt.Errorf("risk thresholds must be strictly increasing")
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") && path != "~" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/"))
}
