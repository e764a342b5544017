// Package config loads and validates run configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all the knobs for a discovery run. Values come from an
// optional YAML file plus JOBHUNTER_* environment overrides; the run itself
// takes no command-line arguments.
type Config struct {
	UserID       int64    `mapstructure:"user_id"`
	SitesInclude []string `mapstructure:"sites_include"`
	KeywordLimit int      `mapstructure:"keyword_limit"`

	Scoring    ScoringConfig    `mapstructure:"scoring"`
	DeepScan   DeepScanConfig   `mapstructure:"deep_scan"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Seek       SeekConfig       `mapstructure:"seek"`
	DB         DBConfig         `mapstructure:"db"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ScoringConfig controls the preliminary card-view scoring.
type ScoringConfig struct {
	BaseScore      int `mapstructure:"base_score"`
	QueueThreshold int `mapstructure:"queue_threshold"`
}

// DeepScanConfig controls the second enrichment pass.
type DeepScanConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	Threshold        int  `mapstructure:"threshold"`
	LimitPerKeyword  int  `mapstructure:"limit_per_keyword"`
	SettleDelayMs    int  `mapstructure:"settle_delay_ms"`
	CheckpointEveryN int  `mapstructure:"checkpoint_every"`
}

// SettleDelay returns the delay applied after loading a detail page.
func (d DeepScanConfig) SettleDelay() time.Duration {
	return time.Duration(d.SettleDelayMs) * time.Millisecond
}

// BrowserConfig configures the headless rendering session.
type BrowserConfig struct {
	Headless      bool   `mapstructure:"headless"`
	UserAgent     string `mapstructure:"user_agent"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	WindowWidth   int    `mapstructure:"window_width"`
	WindowHeight  int    `mapstructure:"window_height"`
	Highlight     bool   `mapstructure:"highlight"`
}

// NavTimeout returns the navigation timeout as a duration.
func (b BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(b.NavTimeoutSec) * time.Second
}

// PaginationConfig governs the per-page wait/settle/retry behavior.
type PaginationConfig struct {
	WaitTimeoutSec int `mapstructure:"wait_timeout_seconds"`
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	SettleDelayMs  int `mapstructure:"settle_delay_ms"`
	MinPageBytes   int `mapstructure:"min_page_bytes"`
}

// WaitTimeout returns the bounded poll timeout.
func (p PaginationConfig) WaitTimeout() time.Duration {
	return time.Duration(p.WaitTimeoutSec) * time.Second
}

// PollInterval returns the sleep between presence checks.
func (p PaginationConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

// SettleDelay returns the short delay applied after a poll resolves.
func (p PaginationConfig) SettleDelay() time.Duration {
	return time.Duration(p.SettleDelayMs) * time.Millisecond
}

// SeekConfig holds the Seek search URL defaults.
type SeekConfig struct {
	LocationSlug string `mapstructure:"location_slug"`
	DistanceKM   int    `mapstructure:"distance_km"`
}

// DBConfig controls the Postgres connection. An empty DSN selects the
// seeded in-memory repository, useful for dry runs.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ProgressConfig locates the overwritten progress snapshot file.
type ProgressConfig struct {
	File string `mapstructure:"file"`
}

// ArtifactsConfig controls per-page HTML snapshots for diagnostics.
type ArtifactsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// ServerConfig controls the optional read-only progress/metrics endpoint.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and the optional log file.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// Load builds a Config from disk/environment. path may be empty, in which
// case only defaults and env vars apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBHUNTER")
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
	v.SetDefault("user_id", 1)
	v.SetDefault("keyword_limit", 0)
	v.SetDefault("scoring.base_score", 3)
	v.SetDefault("scoring.queue_threshold", 3)
	v.SetDefault("deep_scan.enabled", true)
	v.SetDefault("deep_scan.threshold", 4)
	v.SetDefault("deep_scan.limit_per_keyword", 50)
	v.SetDefault("deep_scan.settle_delay_ms", 2000)
	v.SetDefault("deep_scan.checkpoint_every", 5)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.nav_timeout_seconds", 25)
	v.SetDefault("browser.window_width", 1200)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.highlight", false)
	v.SetDefault("pagination.wait_timeout_seconds", 4)
	v.SetDefault("pagination.poll_interval_ms", 200)
	v.SetDefault("pagination.settle_delay_ms", 150)
	v.SetDefault("pagination.min_page_bytes", 200)
	v.SetDefault("seek.location_slug", "Ringwood-VIC-3134")
	v.SetDefault("seek.distance_km", 10)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("progress.file", "scrape_progress.json")
	v.SetDefault("artifacts.enabled", false)
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.file", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.UserID <= 0 {
		return fmt.Errorf("user_id must be > 0")
	}
	if c.Scoring.QueueThreshold < 0 {
		return fmt.Errorf("scoring.queue_threshold must be >= 0")
	}
	if c.DeepScan.Enabled && c.DeepScan.LimitPerKeyword <= 0 {
		return fmt.Errorf("deep_scan.limit_per_keyword must be > 0 when deep scan is enabled")
	}
	if c.DeepScan.CheckpointEveryN <= 0 {
		return fmt.Errorf("deep_scan.checkpoint_every must be > 0")
	}
	if c.Browser.NavTimeoutSec <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Pagination.WaitTimeoutSec <= 0 {
		return fmt.Errorf("pagination.wait_timeout_seconds must be > 0")
	}
	if c.Pagination.PollIntervalMs <= 0 {
		return fmt.Errorf("pagination.poll_interval_ms must be > 0")
	}
	if c.Pagination.MinPageBytes < 0 {
		return fmt.Errorf("pagination.min_page_bytes must be >= 0")
	}
	if c.Progress.File == "" {
		return fmt.Errorf("progress.file must be set")
	}
	if c.Artifacts.Enabled && c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir must be set when artifacts are enabled")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}
