// Package config handles classline configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for classline.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Server settings for the remote persistence service.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Sync settings for the reconciliation loop.
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// Cache settings for the persisted snapshot.
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// Archive settings for the local message history database.
	Archive ArchiveConfig `yaml:"archive" mapstructure:"archive"`

	// Timeline settings for the optimistic send lifecycle.
	Timeline TimelineConfig `yaml:"timeline" mapstructure:"timeline"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Metrics settings
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Sentry settings
	Sentry SentryConfig `yaml:"sentry" mapstructure:"sentry"`
}

// GlobalConfig contains global classline settings.
type GlobalConfig struct {
	// DataDir is where classline stores its data (default: ~/.local/share/classline).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/classline).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// ServerConfig contains remote service settings.
type ServerConfig struct {
	// BaseURL is the REST endpoint of the persistence service.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// EventsURL is the websocket endpoint of the signaling channel.
	EventsURL string `yaml:"events_url" mapstructure:"events_url"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SyncConfig contains reconciliation loop settings.
type SyncConfig struct {
	// PollInterval is how often the chat/topic summary list is re-fetched.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// ReconnectInterval is the websocket reconnect backoff.
	ReconnectInterval time.Duration `yaml:"reconnect_interval" mapstructure:"reconnect_interval"`
}

// CacheConfig contains persisted snapshot settings.
type CacheConfig struct {
	// Path is the snapshot file path (default: DataDir/state.json).
	Path string `yaml:"path" mapstructure:"path"`

	// FlushDebounce is how long a mutation burst is coalesced before the
	// snapshot is written.
	FlushDebounce time.Duration `yaml:"flush_debounce" mapstructure:"flush_debounce"`
}

// ArchiveConfig contains local message history database settings.
type ArchiveConfig struct {
	// Path is the SQLite database file path (default: DataDir/archive.db).
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeoutMs is how long to wait for a locked database.
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// TimelineConfig contains send lifecycle settings.
type TimelineConfig struct {
	// SentDelay is when a sending message is locally advanced to sent.
	SentDelay time.Duration `yaml:"sent_delay" mapstructure:"sent_delay"`

	// DeliveredDelay is when it is advanced to delivered.
	DeliveredDelay time.Duration `yaml:"delivered_delay" mapstructure:"delivered_delay"`

	// ReadDelay is when it is advanced to read.
	ReadDelay time.Duration `yaml:"read_delay" mapstructure:"read_delay"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// MetricsConfig contains prometheus settings.
type MetricsConfig struct {
	// Enabled turns the metrics endpoint on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Addr is the listen address for the /metrics handler.
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// SentryConfig contains crash reporting settings.
type SentryConfig struct {
	// DSN enables Sentry when non-empty.
	DSN string `yaml:"dsn" mapstructure:"dsn"`

	// Environment tags reported events.
	Environment string `yaml:"environment" mapstructure:"environment"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "classline"),
			ConfigDir: filepath.Join(homeDir, ".config", "classline"),
		},
		Server: ServerConfig{
			BaseURL:   "http://localhost:8080",
			EventsURL: "ws://localhost:8080/events",
			Timeout:   10 * time.Second,
		},
		Sync: SyncConfig{
			PollInterval:      15 * time.Second,
			ReconnectInterval: 2 * time.Second,
		},
		Cache: CacheConfig{
			FlushDebounce: 500 * time.Millisecond,
		},
		Archive: ArchiveConfig{
			BusyTimeoutMs: 5000,
		},
		Timeline: TimelineConfig{
			SentDelay:      500 * time.Millisecond,
			DeliveredDelay: 1000 * time.Millisecond,
			ReadDelay:      2000 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9190",
		},
		Sentry: SentryConfig{
			Environment: "dev",
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Sync.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("sync.poll_interval must be at least 100ms")
	}
	if c.Cache.FlushDebounce <= 0 {
		return fmt.Errorf("cache.flush_debounce must be positive")
	}
	if c.Timeline.SentDelay >= c.Timeline.DeliveredDelay || c.Timeline.DeliveredDelay >= c.Timeline.ReadDelay {
		return fmt.Errorf("timeline delays must be strictly increasing")
	}
	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// CachePath returns the full snapshot path.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return filepath.Join(c.Global.DataDir, "state.json")
}

// ArchivePath returns the full archive database path.
func (c *Config) ArchivePath() string {
	if c.Archive.Path != "" {
		return c.Archive.Path
	}
	return filepath.Join(c.Global.DataDir, "archive.db")
}
