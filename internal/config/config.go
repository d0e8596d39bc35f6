// Package config provides configuration management for forkcast.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for the simulation and the classifier client.
const (
	DefaultModel      = "gpt-4o-mini"
	DefaultDBPath     = "forkcast.db"
	DefaultSeedPath   = "seeds/food_catalog.csv"
	DefaultListenAddr = ":8085"

	// USD per 1000 tokens.
	DefaultPricePer1KInput  = 0.150
	DefaultPricePer1KOutput = 0.600
)

// Config holds the settings the core consumes. CallBudget nil means
// unlimited external calls.
type Config struct {
	DBDSN      string `yaml:"db_dsn"`
	SeedPath   string `yaml:"seed_path"`
	MaxConns   int    `yaml:"max_conns"`
	ListenAddr string `yaml:"listen_addr"`

	DryRun           bool    `yaml:"dry_run"`
	Model            string  `yaml:"model"`
	BaseURL          string  `yaml:"base_url"`
	PricePer1KInput  float64 `yaml:"price_per_1k_input"`
	PricePer1KOutput float64 `yaml:"price_per_1k_output"`
	CallBudget       *int64  `yaml:"call_budget"`
	BucketHint       bool    `yaml:"bucket_hint"`

	// Secrets come from the environment only, never from the settings file.
	APIKey    string `yaml:"-"`
	AuthToken string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBDSN:            DefaultDBPath,
		SeedPath:         DefaultSeedPath,
		MaxConns:         4,
		ListenAddr:       DefaultListenAddr,
		DryRun:           true,
		Model:            DefaultModel,
		PricePer1KInput:  DefaultPricePer1KInput,
		PricePer1KOutput: DefaultPricePer1KOutput,
		BucketHint:       true,
	}
}

// Load builds the configuration: defaults, then the optional YAML settings
// file named by FORKCAST_CONFIG, then environment variables (a .env file
// is honored when present). Environment wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("FORKCAST_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read settings file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse settings file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FORKCAST_DB"); v != "" {
		cfg.DBDSN = v
	}
	if v := os.Getenv("FORKCAST_SEED"); v != "" {
		cfg.SeedPath = v
	}
	if v := os.Getenv("FORKCAST_LISTEN"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("FORKCAST_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConns = n
		}
	}
	if v, ok := os.LookupEnv("FORKCAST_DRY_RUN"); ok {
		cfg.DryRun = envBool(v)
	}
	if v := os.Getenv("FORKCAST_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("FORKCAST_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("FORKCAST_PRICE_PER_1K_INPUT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PricePer1KInput = f
		}
	}
	if v := os.Getenv("FORKCAST_PRICE_PER_1K_OUTPUT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PricePer1KOutput = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("FORKCAST_LLM_CALL_BUDGET")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			if n < 0 {
				n = 0
			}
			cfg.CallBudget = &n
		}
	}
	if v, ok := os.LookupEnv("FORKCAST_TOP3_BUCKET_HINT"); ok {
		cfg.BucketHint = envBool(v)
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("FORKCAST_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
}

// envBool treats "0", "false", "no" (any case) as false, everything
// else as true.
func envBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no":
		return false
	}
	return true
}

// Validate rejects configurations a live run cannot work with.
func (c *Config) Validate() error {
	if !c.DryRun && c.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for live runs")
	}
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	return nil
}
