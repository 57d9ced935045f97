// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every configuration knob, loaded from file and environment.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Extract ExtractConfig `mapstructure:"extract"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Sources SourcesConfig `mapstructure:"sources"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// FetchConfig governs the polite fetcher and the per-domain rate limiter.
// MaxRetries is the total attempt count per URL; 1 means a single attempt
// with no retries.
type FetchConfig struct {
	TimeoutSeconds          int     `mapstructure:"timeout_seconds"`
	MaxRetries              int     `mapstructure:"max_retries"`
	MinDelayMs              int     `mapstructure:"min_delay_ms"`
	MaxDelayMs              int     `mapstructure:"max_delay_ms"`
	DomainIntervalMs        int     `mapstructure:"domain_interval_ms"`
	ForbiddenCooldownSecMin float64 `mapstructure:"forbidden_cooldown_sec_min"`
	ForbiddenCooldownSecMax float64 `mapstructure:"forbidden_cooldown_sec_max"`
	ThrottledCooldownSecMin float64 `mapstructure:"throttled_cooldown_sec_min"`
	ThrottledCooldownSecMax float64 `mapstructure:"throttled_cooldown_sec_max"`
}

// Timeout returns the per-request timeout as a duration.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DomainInterval returns the minimum inter-request interval per domain.
func (c FetchConfig) DomainInterval() time.Duration {
	return time.Duration(c.DomainIntervalMs) * time.Millisecond
}

// ExtractConfig tunes the content extraction heuristics.
type ExtractConfig struct {
	MinContentLength   int `mapstructure:"min_content_length"`
	MinParagraphLength int `mapstructure:"min_paragraph_length"`
	SummaryLength      int `mapstructure:"summary_length"`
}

// IngestConfig governs the orchestrator.
type IngestConfig struct {
	Concurrency      int      `mapstructure:"concurrency"`
	ExcludedDomains  []string `mapstructure:"excluded_domains"`
	MinContentLength int      `mapstructure:"min_content_length"`
}

// SourcesConfig holds credentials and endpoints for the paid-API adapters.
type SourcesConfig struct {
	TheNewsAPIToken string   `mapstructure:"thenewsapi_token"`
	GNewsAPIKey     string   `mapstructure:"gnews_api_key"`
	NYTimesAPIKey   string   `mapstructure:"nytimes_api_key"`
	RSSFeeds        []string `mapstructure:"rss_feeds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from an optional file plus environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)

	v.SetDefault("fetch.timeout_seconds", 20)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.min_delay_ms", 1000)
	v.SetDefault("fetch.max_delay_ms", 3000)
	v.SetDefault("fetch.domain_interval_ms", 2000)
	v.SetDefault("fetch.forbidden_cooldown_sec_min", 5.0)
	v.SetDefault("fetch.forbidden_cooldown_sec_max", 10.0)
	v.SetDefault("fetch.throttled_cooldown_sec_min", 10.0)
	v.SetDefault("fetch.throttled_cooldown_sec_max", 20.0)

	v.SetDefault("extract.min_content_length", 200)
	v.SetDefault("extract.min_paragraph_length", 50)
	v.SetDefault("extract.summary_length", 200)

	v.SetDefault("ingest.concurrency", 10)
	v.SetDefault("ingest.min_content_length", 200)
	v.SetDefault("ingest.excluded_domains", []string{
		"youtube.com",
		"twitter.com",
		"facebook.com",
		"instagram.com",
		"reddit.com",
	})

	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxRetries < 1 {
		return fmt.Errorf("fetch.max_retries must be >= 1 (1 means no retries)")
	}
	if c.Fetch.MinDelayMs < 0 || c.Fetch.MaxDelayMs < c.Fetch.MinDelayMs {
		return fmt.Errorf("fetch delay range is invalid")
	}
	if c.Fetch.DomainIntervalMs < 0 {
		return fmt.Errorf("fetch.domain_interval_ms must be >= 0")
	}
	if c.Extract.MinContentLength < 0 {
		return fmt.Errorf("extract.min_content_length must be >= 0")
	}
	if c.Extract.SummaryLength <= 0 {
		return fmt.Errorf("extract.summary_length must be > 0")
	}
	if c.Ingest.Concurrency <= 0 {
		return fmt.Errorf("ingest.concurrency must be > 0")
	}
	return nil
}
