// Package config loads and validates the process configuration.
// Everything has a documented default; a YAML file only overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/defilens/defilens/internal/score"
)

// Config is the full process configuration.
type Config struct {
	Client   ClientConfig   `yaml:"client"`
	Cache    CacheConfig    `yaml:"cache"`
	Resolver ResolverConfig `yaml:"resolver"`
	Scoring  score.Policy   `yaml:"scoring"`
	Server   ServerConfig   `yaml:"server"`

	// DefaultDays is the TVL history window used when the caller does
	// not pass one.
	DefaultDays int `yaml:"default_days"`
}

// ClientConfig controls the upstream HTTP client.
type ClientConfig struct {
	BaseURL       string  `yaml:"base_url"`
	TimeoutSecs   int     `yaml:"timeout_secs"`
	RateLimitRPS  float64 `yaml:"rate_limit_rps"`
	Burst         int     `yaml:"burst"`
	MaxRetries    int     `yaml:"max_retries"`
	BackoffBaseMS int     `yaml:"backoff_base_ms"`
	BackoffMaxMS  int     `yaml:"backoff_max_ms"`
	UserAgent     string  `yaml:"user_agent"`
}

func (c ClientConfig) Timeout() time.Duration     { return time.Duration(c.TimeoutSecs) * time.Second }
func (c ClientConfig) BackoffBase() time.Duration { return time.Duration(c.BackoffBaseMS) * time.Millisecond }
func (c ClientConfig) BackoffMax() time.Duration  { return time.Duration(c.BackoffMaxMS) * time.Millisecond }

// CacheConfig selects the cache backend and its per-endpoint TTLs.
type CacheConfig struct {
	Backend         string `yaml:"backend"` // "memory" or "redis"
	RedisAddr       string `yaml:"redis_addr"`
	MaxEntries      int    `yaml:"max_entries"`
	DetailTTLSecs   int    `yaml:"detail_ttl_secs"`
	HacksTTLSecs    int    `yaml:"hacks_ttl_secs"`
	CatalogTTLSecs  int    `yaml:"catalog_ttl_secs"`
}

func (c CacheConfig) DetailTTL() time.Duration  { return time.Duration(c.DetailTTLSecs) * time.Second }
func (c CacheConfig) HacksTTL() time.Duration   { return time.Duration(c.HacksTTLSecs) * time.Second }
func (c CacheConfig) CatalogTTL() time.Duration { return time.Duration(c.CatalogTTLSecs) * time.Second }

// ResolverConfig controls name matching.
type ResolverConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	SuggestionCutoff    float64 `yaml:"suggestion_cutoff"`
	MaxSuggestions      int     `yaml:"max_suggestions"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen             string `yaml:"listen"`
	CatalogRefreshSpec string `yaml:"catalog_refresh"` // cron spec
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			BaseURL:       "https://api.llama.fi",
			TimeoutSecs:   30,
			RateLimitRPS:  3.0,
			Burst:         3,
			MaxRetries:    3,
			BackoffBaseMS: 500,
			BackoffMaxMS:  15000,
			UserAgent:     "DefiLens/1.0 (due-diligence)",
		},
		Cache: CacheConfig{
			Backend:        "memory",
			MaxEntries:     1024,
			DetailTTLSecs:  900,
			HacksTTLSecs:   21600,
			CatalogTTLSecs: 21600,
		},
		Resolver: ResolverConfig{
			SimilarityThreshold: 0.85,
			SuggestionCutoff:    0.4,
			MaxSuggestions:      3,
		},
		Scoring: score.DefaultPolicy(),
		Server: ServerConfig{
			Listen:             ":8780",
			CatalogRefreshSpec: "@every 6h",
		},
		DefaultDays: 30,
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the whole configuration, including the scoring
// weight-sum property, once at load time.
func (c *Config) Validate() error {
	if c.Client.BaseURL == "" {
		return fmt.Errorf("client base_url cannot be empty")
	}
	if c.Client.TimeoutSecs <= 0 {
		return fmt.Errorf("client timeout_secs must be positive, got %d", c.Client.TimeoutSecs)
	}
	if c.Client.RateLimitRPS <= 0 {
		return fmt.Errorf("client rate_limit_rps must be positive, got %f", c.Client.RateLimitRPS)
	}
	if c.Client.MaxRetries < 0 {
		return fmt.Errorf("client max_retries cannot be negative, got %d", c.Client.MaxRetries)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache backend redis requires redis_addr")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (want memory or redis)", c.Cache.Backend)
	}
	for name, ttl := range map[string]int{
		"detail_ttl_secs":  c.Cache.DetailTTLSecs,
		"hacks_ttl_secs":   c.Cache.HacksTTLSecs,
		"catalog_ttl_secs": c.Cache.CatalogTTLSecs,
	} {
		if ttl <= 0 {
			return fmt.Errorf("cache %s must be positive, got %d", name, ttl)
		}
	}

	if t := c.Resolver.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("resolver similarity_threshold must be in (0,1], got %f", t)
	}
	if t := c.Resolver.SuggestionCutoff; t <= 0 || t > 1 {
		return fmt.Errorf("resolver suggestion_cutoff must be in (0,1], got %f", t)
	}

	if err := c.Scoring.Validate(); err != nil {
		return err
	}

	if c.DefaultDays <= 0 {
		return fmt.Errorf("default_days must be positive, got %d", c.DefaultDays)
	}
	return nil
}
