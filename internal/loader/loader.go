// Package loader loads the trendwatch YAML configuration.
//
// Loading starts from DefaultConfig, expands environment variables in
// the file contents, and unmarshals on top of the defaults, so a partial
// config file only overrides what it names.
package loader

import (
	"fmt"
	"os"
	"time"

	"github.com/xtxerr/trendwatch/config"
	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Store   StoreConfig   `yaml:"store"`
	History HistoryConfig `yaml:"history"`
	Archive ArchiveConfig `yaml:"archive"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins is the CORS allowlist for the browser dashboard.
	// Empty means same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// FetchConfig configures the upstream snapshot fetcher.
type FetchConfig struct {
	// URL serves the per-cluster/per-pod/per-metric JSON payload.
	// Empty disables the fetcher (ingestion via API or library only).
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// StoreConfig configures the durable snapshot store.
type StoreConfig struct {
	Path         string        `yaml:"path"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// HistoryConfig configures the in-memory window cache and ingestion.
type HistoryConfig struct {
	RetentionSeconds  int64         `yaml:"retention_seconds"`
	RetentionInterval time.Duration `yaml:"retention_interval"`
	IngestQueueSize   int           `yaml:"ingest_queue_size"`
}

// ArchiveConfig configures Parquet archival of evicted points.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns a Config populated from config package defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          config.DefaultListenAddress,
			ShutdownTimeout: config.DefaultShutdownTimeout,
		},
		Fetch: FetchConfig{
			Interval: config.DefaultFetchInterval,
			Timeout:  config.DefaultFetchTimeout,
		},
		Store: StoreConfig{
			Path:         config.DefaultStorePath,
			QueryTimeout: config.DefaultStoreQueryTimeout,
		},
		History: HistoryConfig{
			RetentionSeconds:  config.DefaultRetentionSeconds,
			RetentionInterval: config.DefaultRetentionInterval,
			IngestQueueSize:   config.DefaultIngestQueueSize,
		},
		Archive: ArchiveConfig{
			Dir: config.DefaultArchiveDir,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. Environment variables in
// the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.History.RetentionSeconds <= 0 {
		return fmt.Errorf("history.retention_seconds must be positive, got %d", c.History.RetentionSeconds)
	}
	if c.History.IngestQueueSize <= 0 {
		return fmt.Errorf("history.ingest_queue_size must be positive, got %d", c.History.IngestQueueSize)
	}
	if c.Fetch.URL != "" && c.Fetch.Interval <= 0 {
		return fmt.Errorf("fetch.interval must be positive, got %v", c.Fetch.Interval)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.Archive.Enabled && c.Archive.Dir == "" {
		return fmt.Errorf("archive.dir must not be empty when archiving is enabled")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
