package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"MetalsMonitor/internal/domain"
)

const (
	perplexityAPIKeyEnv = "PERPLEXITY_API_KEY"
	perplexityModelEnv  = "PERPLEXITY_MODEL"
	storeDSNEnv         = "STORE_DSN"
)

// Config holds high-level settings required across the application.
type Config struct {
	Search    SearchConfig    `yaml:"search"`
	Store     StoreConfig     `yaml:"store"`
	Feed      FeedConfig      `yaml:"feed"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
	Queries   []string        `yaml:"queries"`
}

// SearchConfig describes the Perplexity search API access.
type SearchConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// StoreConfig selects and parameterizes the article store backend.
type StoreConfig struct {
	// Backend is either "csv" or "postgres".
	Backend string `yaml:"backend"`
	// Path is the CSV snapshot file for the csv backend.
	Path string `yaml:"path"`
	// DSN is the connection string for the postgres backend.
	DSN string `yaml:"dsn"`
	// RetentionCap bounds how many articles the store keeps.
	RetentionCap int `yaml:"retentionCap"`
}

// FeedConfig describes the published RSS document.
type FeedConfig struct {
	Path        string `yaml:"path"`
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Description string `yaml:"description"`
	MaxItems    int    `yaml:"maxItems"`
}

// PipelineConfig tunes the fetch loop.
type PipelineConfig struct {
	LookbackHours     int `yaml:"lookbackHours"`
	QueryDelaySeconds int `yaml:"queryDelaySeconds"`
}

// SchedulerConfig defines how often scheduled mode reruns the pipeline.
type SchedulerConfig struct {
	IntervalHours int `yaml:"intervalHours"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration from path (if non-empty) and applies
// environment overrides on top of defaults.
func Load(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Queries) == 0 {
		cfg.Queries = defaultConfig().Queries
	}

	return cfg
}

// Validate reports fatal misconfiguration. A run must not start if this
// returns an error.
func (c Config) Validate() error {
	if c.Search.APIKey == "" {
		return fmt.Errorf("%w: %s is not set", domain.ErrConfig, perplexityAPIKeyEnv)
	}

	switch c.Store.Backend {
	case "csv":
		if c.Store.Path == "" {
			return fmt.Errorf("%w: csv store requires a path", domain.ErrConfig)
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: postgres store requires a dsn", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", domain.ErrConfig, c.Store.Backend)
	}

	if c.Store.RetentionCap <= 0 {
		return fmt.Errorf("%w: retention cap must be positive", domain.ErrConfig)
	}
	if c.Feed.MaxItems <= 0 {
		return fmt.Errorf("%w: feed max items must be positive", domain.ErrConfig)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(perplexityAPIKeyEnv); v != "" {
		c.Search.APIKey = v
	}
	if v := os.Getenv(perplexityModelEnv); v != "" {
		c.Search.Model = v
	}
	if v := os.Getenv(storeDSNEnv); v != "" {
		c.Store.DSN = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Search.Endpoint != "" {
		base.Search.Endpoint = override.Search.Endpoint
	}
	if override.Search.Model != "" {
		base.Search.Model = override.Search.Model
	}
	if override.Search.APIKey != "" {
		base.Search.APIKey = override.Search.APIKey
	}

	if override.Store.Backend != "" {
		base.Store.Backend = override.Store.Backend
	}
	if override.Store.Path != "" {
		base.Store.Path = override.Store.Path
	}
	if override.Store.DSN != "" {
		base.Store.DSN = override.Store.DSN
	}
	if override.Store.RetentionCap > 0 {
		base.Store.RetentionCap = override.Store.RetentionCap
	}

	if override.Feed.Path != "" {
		base.Feed.Path = override.Feed.Path
	}
	if override.Feed.Title != "" {
		base.Feed.Title = override.Feed.Title
	}
	if override.Feed.Link != "" {
		base.Feed.Link = override.Feed.Link
	}
	if override.Feed.Description != "" {
		base.Feed.Description = override.Feed.Description
	}
	if override.Feed.MaxItems > 0 {
		base.Feed.MaxItems = override.Feed.MaxItems
	}

	if override.Pipeline.LookbackHours > 0 {
		base.Pipeline.LookbackHours = override.Pipeline.LookbackHours
	}
	if override.Pipeline.QueryDelaySeconds > 0 {
		base.Pipeline.QueryDelaySeconds = override.Pipeline.QueryDelaySeconds
	}

	if override.Scheduler.IntervalHours > 0 {
		base.Scheduler.IntervalHours = override.Scheduler.IntervalHours
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if len(override.Queries) > 0 {
		base.Queries = override.Queries
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Search: SearchConfig{
			Endpoint: "https://api.perplexity.ai/chat/completions",
			Model:    "sonar",
		},
		Store: StoreConfig{
			Backend:      "csv",
			Path:         "data/metals_news.csv",
			RetentionCap: 500,
		},
		Feed: FeedConfig{
			Path:        "data/metals_news.rss",
			Title:       "Metals Industry News",
			Link:        "https://example.org/metals-news",
			Description: "Curated news on aluminum, steel, copper and nickel markets",
			MaxItems:    50,
		},
		Pipeline: PipelineConfig{
			LookbackHours:     24,
			QueryDelaySeconds: 2,
		},
		Scheduler: SchedulerConfig{
			IntervalHours: 24,
		},
		Logging: LoggingConfig{Level: "info"},
		Queries: defaultQueries(),
	}
}

func defaultQueries() []string {
	return []string{
		"aluminum prices and market trends",
		"aluminum production and capacity",
		"aluminum technology innovation sustainability",
		"steel prices and market trends",
		"steel production and capacity",
		"steel technology innovation sustainability",
		"copper prices and market trends",
		"copper production and capacity",
		"copper technology innovation sustainability",
		"nickel prices and market trends",
		"nickel production and capacity",
		"nickel technology innovation sustainability",
		"Cogne Acciai Speciali news aluminum steel italy",
		"Tenaris news steel italy",
		"Prysmian news copper cables italy",
		"Enel X news energy storage metals italy",
		"Italbronze news bronze copper italy",
		"Acciai Speciali Terni news steel italy",
		"Arvedi news steel italy",
		"Danieli news steel plants italy",
		"Ilva Acciaierie d'Italia news steel italy",
		"KME Italy news copper italy",
	}
}
