// Package config provides configuration types, defaults, loading and
// persistence for ledgerkit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/ledgerkit/internal/flags"
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/paths"
	"github.com/zjrosen/ledgerkit/internal/tracing"
)

// Config holds all configuration options for ledgerkit.
type Config struct {
	// Document is the sqlite file holding the ledger.
	Document string `mapstructure:"document" yaml:"document"`

	// Autosave persists the document after every outermost commit that
	// changed something.
	Autosave bool `mapstructure:"autosave" yaml:"autosave"`

	Undo    UndoConfig     `mapstructure:"undo" yaml:"undo"`
	Cache   CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Watch   WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Log     LogConfig      `mapstructure:"log" yaml:"log"`
	Tracing tracing.Config `mapstructure:"tracing" yaml:"tracing"`

	// Flags toggles document behavior; see the flags package.
	Flags map[string]bool `mapstructure:"flags" yaml:"flags,omitempty"`
}

// UndoConfig bounds the undo history.
type UndoConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit"` // 0 keeps everything
}

// CacheConfig tunes the document read cache.
type CacheConfig struct {
	Expiration      time.Duration `mapstructure:"expiration" yaml:"expiration"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// WatchConfig tunes the document file watcher.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// LogConfig controls the debug log file.
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
	Level   string `mapstructure:"level" yaml:"level"` // debug, info, warn, error
}

// DefaultDocumentPath is the document used when none is configured.
const DefaultDocumentPath = ".ledgerkit/ledger.db"

// DefaultConfigPath is where a missing config is created.
const DefaultConfigPath = ".ledgerkit/config.yaml"

// DefaultTracesFilePath returns ~/.config/ledgerkit/traces/traces.jsonl, or
// an empty string when the home directory is unknown.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ledgerkit", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()
	return Config{
		Document: DefaultDocumentPath,
		Autosave: true,
		Undo:     UndoConfig{Limit: 100},
		Cache: CacheConfig{
			Expiration:      10 * time.Minute,
			CleanupInterval: 30 * time.Minute,
		},
		Watch: WatchConfig{Debounce: 100 * time.Millisecond},
		Log: LogConfig{
			Enabled: false,
			Path:    "debug.log",
			Level:   "info",
		},
		Tracing: tc,
		Flags:   flags.Defaults(),
	}
}

// SetDefaults registers every default with v so partial config files
// unmarshal into complete values.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("document", d.Document)
	v.SetDefault("autosave", d.Autosave)
	v.SetDefault("undo.limit", d.Undo.Limit)
	v.SetDefault("cache.expiration", d.Cache.Expiration)
	v.SetDefault("cache.cleanup_interval", d.Cache.CleanupInterval)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("log.enabled", d.Log.Enabled)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("flags", d.Flags)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Log.Path = paths.ExpandHome(cfg.Log.Path)
	cfg.Tracing.FilePath = paths.ExpandHome(cfg.Tracing.FilePath)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	log.Debug(log.CatConfig, "loaded config", "file", v.ConfigFileUsed(), "document", cfg.Document)
	return cfg, nil
}

// Validate checks the configuration for errors.
func Validate(cfg Config) error {
	if cfg.Document == "" {
		return fmt.Errorf("document is required")
	}
	if cfg.Undo.Limit < 0 {
		return fmt.Errorf("undo.limit must not be negative, got %d", cfg.Undo.Limit)
	}
	if cfg.Cache.Expiration < 0 || cfg.Cache.CleanupInterval < 0 {
		return fmt.Errorf("cache durations must not be negative")
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", cfg.Watch.Debounce)
	}
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", cfg.Log.Level)
	}
	if cfg.Log.Enabled && cfg.Log.Path == "" {
		return fmt.Errorf("log.path is required when logging is enabled")
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}

	if tc.Exporter != "" {
		switch tc.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
		}
	}

	if tc.Enabled {
		if tc.Exporter == "file" && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == "otlp" && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as YAML with comments.
func DefaultConfigTemplate() string {
	return `# ledgerkit configuration

# sqlite document holding the ledger
document: .ledgerkit/ledger.db

# Save the document after every commit that changed something
autosave: true

undo:
  limit: 100   # operations kept for undo, 0 keeps everything

# Read cache in front of the document
cache:
  expiration: 10m
  cleanup_interval: 30m

# 'ledgerkit watch' waits this long for writes to settle
watch:
  debounce: 100ms

log:
  enabled: false
  path: debug.log
  level: info   # debug, info, warn, error

# Behavior toggles
flags:
  commit-rollback: true   # undo what a failed commit already applied
  read-cache: true        # keep loaded revisions in memory

# Commit, undo and redo spans
# tracing:
#   enabled: false
#   exporter: file                 # none, file, stdout, otlp
#   file_path: ~/.config/ledgerkit/traces/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at configPath with default
// settings and comments, creating the parent directory if needed.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
