package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration.
type Config struct {
	DBPath      string           `yaml:"db_path"`
	TemplateDir string           `yaml:"template_dir"`
	Providers   []ProviderConfig `yaml:"providers"`
	Cache       CacheConfig      `yaml:"cache"`
	Batch       BatchConfig      `yaml:"batch"`
	Dedup       DedupConfig      `yaml:"dedup"`
	Quota       QuotaConfig      `yaml:"quota"`
	Pricing     PricingConfig    `yaml:"pricing"`
}

// ProviderConfig defines an upstream AI provider. Providers form an ordered
// fallback chain: the gateway tries each in turn on failure.
type ProviderConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// CacheConfig controls the in-memory request cache.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// BatchConfig controls request batching.
type BatchConfig struct {
	Size    int           `yaml:"size"`
	Timeout time.Duration `yaml:"timeout"`
}

// DedupConfig controls near-duplicate folding.
type DedupConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
}

// QuotaConfig sets per-user request budgets.
type QuotaConfig struct {
	Daily        int `yaml:"daily"`
	Monthly      int `yaml:"monthly"`
	HistoryLimit int `yaml:"history_limit"`
}

// PricingConfig drives cost and savings estimates. ModelRates overrides the
// flat per-token rate for specific models.
type PricingConfig struct {
	OverheadTokens int                `yaml:"overhead_tokens"`
	CostPerToken   float64            `yaml:"cost_per_token"`
	ModelRates     map[string]float64 `yaml:"model_rates,omitempty"`
	DedupSaveRatio float64            `yaml:"dedup_save_ratio"`
}

// RateFor returns the per-token rate for a model, falling back to the flat
// rate when the model has no entry.
func (p PricingConfig) RateFor(model string) float64 {
	if rate, ok := p.ModelRates[model]; ok {
		return rate
	}
	return p.CostPerToken
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath:      "coachai.db",
		TemplateDir: "templates",
		Cache: CacheConfig{
			Enabled:       true,
			TTL:           time.Hour,
			MaxEntries:    1000,
			SweepInterval: 5 * time.Minute,
		},
		Batch: BatchConfig{
			Size:    15,
			Timeout: 20 * time.Second,
		},
		Dedup: DedupConfig{
			Enabled:   true,
			Threshold: 0.8,
		},
		Quota: QuotaConfig{
			Daily:        100,
			Monthly:      2000,
			HistoryLimit: 1000,
		},
		Pricing: PricingConfig{
			OverheadTokens: 50,
			CostPerToken:   0.00003,
			DedupSaveRatio: 0.9,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
