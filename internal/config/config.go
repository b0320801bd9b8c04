// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all harvester knobs loaded via Viper.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Images   ImagesConfig   `mapstructure:"images"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Output   OutputConfig   `mapstructure:"output"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SiteConfig identifies the target catalog.
type SiteConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	CategoryURL       string `mapstructure:"category_url"`
	Brand             string `mapstructure:"brand"`
	BrandToken        string `mapstructure:"brand_token"`
	DefaultCategory   string `mapstructure:"default_category"`
	CategoryPathToken string `mapstructure:"category_path_token"`
}

// CrawlerConfig governs pacing, retries, and robots handling.
type CrawlerConfig struct {
	UserAgent               string  `mapstructure:"user_agent"`
	Referer                 string  `mapstructure:"referer"`
	TimeoutSeconds          int     `mapstructure:"timeout_seconds"`
	MaxRetries              int     `mapstructure:"max_retries"`
	RetryStepSeconds        int     `mapstructure:"retry_step_seconds"`
	RequestsPerSecond       float64 `mapstructure:"requests_per_second"`
	Burst                   int     `mapstructure:"burst"`
	PenaltyStepSeconds      int     `mapstructure:"penalty_step_seconds"`
	MaxPenaltySeconds       int     `mapstructure:"max_penalty_seconds"`
	RespectRobots           bool    `mapstructure:"respect_robots"`
	OverrideGeneralDisallow bool    `mapstructure:"override_general_disallow"`
}

// BatchConfig bounds one run's workload.
type BatchConfig struct {
	PerCategoryCap int `mapstructure:"per_category_cap"`
	GlobalCap      int `mapstructure:"global_cap"`
}

// ExtractConfig tunes the discovery cascade.
type ExtractConfig struct {
	MinStructuralYield  int      `mapstructure:"min_structural_yield"`
	Keywords            []string `mapstructure:"keywords"`
	ProductPathPatterns []string `mapstructure:"product_path_patterns"`
}

// ImagesConfig controls image resolution.
type ImagesConfig struct {
	Templates     []string `mapstructure:"templates"`
	FallbackURL   string   `mapstructure:"fallback_url"`
	ContextWindow int      `mapstructure:"context_window"`
}

// LedgerConfig selects and configures the progress backend.
type LedgerConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

// OutputConfig sets the artifact destination.
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// HeadlessConfig configures the browser-backed fetcher.
type HeadlessConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	MaxParallel    int  `mapstructure:"max_parallel"`
}

// MetricsConfig controls the ops endpoint served during a run.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
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
	v.SetDefault("site.base_url", "https://www.maccosmetics.com")
	v.SetDefault("site.category_url", "https://www.maccosmetics.com/skincare")
	v.SetDefault("site.brand", "MAC")
	v.SetDefault("site.brand_token", "mac")
	v.SetDefault("site.default_category", "Skincare")
	v.SetDefault("site.category_path_token", "skincare")
	v.SetDefault("crawler.user_agent", "beautydex-harvester/0.1")
	v.SetDefault("crawler.referer", "https://www.maccosmetics.com")
	v.SetDefault("crawler.timeout_seconds", 30)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.retry_step_seconds", 2)
	v.SetDefault("crawler.requests_per_second", 0.5)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("crawler.penalty_step_seconds", 10)
	v.SetDefault("crawler.max_penalty_seconds", 120)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.override_general_disallow", true)
	v.SetDefault("batch.per_category_cap", 10)
	v.SetDefault("batch.global_cap", 60)
	v.SetDefault("extract.min_structural_yield", 50)
	v.SetDefault("extract.keywords", []string{
		"Cleanser", "Moisturizer", "Serum", "Cream", "Oil", "Balm", "Primer", "Spray",
	})
	v.SetDefault("extract.product_path_patterns", []string{"/product/", "/products/"})
	v.SetDefault("images.templates", []string{
		"https://sdcdn.io/mac/us/mac_sku_%s_1x1_0.png",
		"https://www.maccosmetics.com/media/export/cms/products/640x600/%s.jpg",
	})
	v.SetDefault("images.fallback_url",
		"https://sdcdn.io/mac/us/mac_sku_SKPY01_1x1_0.png")
	v.SetDefault("images.context_window", 2000)
	v.SetDefault("ledger.backend", "file")
	v.SetDefault("ledger.path", "scraped_urls.json")
	v.SetDefault("ledger.table", "harvest_progress")
	v.SetDefault("output.path", "products.json")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.timeout_seconds", 45)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url must be set")
	}
	if c.Site.CategoryURL == "" {
		return fmt.Errorf("site.category_url must be set")
	}
	if strings.TrimSpace(c.Site.BrandToken) == "" {
		return fmt.Errorf("site.brand_token must be non-empty")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Batch.PerCategoryCap <= 0 {
		return fmt.Errorf("batch.per_category_cap must be > 0")
	}
	if c.Batch.GlobalCap <= 0 {
		return fmt.Errorf("batch.global_cap must be > 0")
	}
	switch c.Ledger.Backend {
	case "file":
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path must be set for the file backend")
		}
	case "postgres":
		if c.Ledger.DSN == "" {
			return fmt.Errorf("ledger.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("ledger.backend must be file or postgres, got %q", c.Ledger.Backend)
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path must be set")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	return nil
}

// RequestTimeout converts the configured timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}
