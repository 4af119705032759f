// Package config loads and validates scanner configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	PageSpeed PageSpeedConfig `mapstructure:"pagespeed"`
	Insight   InsightConfig   `mapstructure:"insight"`
	Report    ReportConfig    `mapstructure:"report"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScannerConfig governs dispatcher and scan pipeline behavior.
type ScannerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueDepth  int `mapstructure:"queue_depth"`
}

// FetchConfig configures the page fetcher.
type FetchConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	PerDomainRPS   float64 `mapstructure:"per_domain_rps"`
	Burst          int     `mapstructure:"burst"`
}

// RateLimitConfig bounds scan admissions per domain.
type RateLimitConfig struct {
	MaxScans      int `mapstructure:"max_scans"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

// PageSpeedConfig points at the optional external performance scoring service.
// An empty APIKey disables the service strategy entirely.
type PageSpeedConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// InsightConfig points at the optional text-completion service used for the
// narrative summary. An empty APIKey disables narrative analysis.
type InsightConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Endpoint       string `mapstructure:"endpoint"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ReportConfig controls the paginated report generator.
type ReportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brand   string `mapstructure:"brand"`
}

// StorageConfig selects the blob store for generated reports.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"` // memory, local, gcs
	Prefix    string `mapstructure:"prefix"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// DBConfig selects the scan/rate-limit store backend.
type DBConfig struct {
	Provider     string `mapstructure:"provider"` // memory, postgres
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"` // memory, pubsub
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Default returns the built-in configuration without reading a file. The
// defaults always validate.
func Default() Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBSCAN")
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
	v.SetDefault("scanner.concurrency", 4)
	v.SetDefault("scanner.queue_depth", 64)
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.user_agent", "SiteSageBot/1.0 (+https://sitesage.dev/bot)")
	v.SetDefault("fetch.per_domain_rps", 1)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("ratelimit.max_scans", 5)
	v.SetDefault("ratelimit.window_minutes", 60)
	v.SetDefault("pagespeed.endpoint", "https://www.googleapis.com/pagespeedonline/v5/runPagespeed")
	v.SetDefault("pagespeed.timeout_seconds", 30)
	v.SetDefault("insight.timeout_seconds", 20)
	v.SetDefault("report.enabled", true)
	v.SetDefault("report.brand", "SiteSage")
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.prefix", "reports")
	v.SetDefault("db.provider", "memory")
	v.SetDefault("pubsub.provider", "memory")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scanner.Concurrency <= 0 {
		return fmt.Errorf("scanner.concurrency must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.RateLimit.MaxScans <= 0 {
		return fmt.Errorf("ratelimit.max_scans must be > 0")
	}
	if c.RateLimit.WindowMinutes <= 0 {
		return fmt.Errorf("ratelimit.window_minutes must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db.provider is postgres")
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
	}
	if c.Storage.Provider == "local" && c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir must be set when storage.provider is local")
	}
	return nil
}

// FetchTimeout converts the fetch timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// RateLimitWindow converts the rolling window config into a duration.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowMinutes) * time.Minute
}
