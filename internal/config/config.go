// Package config loads threadscan settings from a YAML file. Every field has
// a default, so a missing file is not an error; command-line flags override
// file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/corey/threadscan/internal/adapters/collector"
	"github.com/corey/threadscan/internal/adapters/report"
	"github.com/corey/threadscan/internal/logger"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = ".threadscan.yaml"

// CacheConfig controls the scan cache and run history.
type CacheConfig struct {
	// Enabled turns on the bbolt cache. Off by default, so a plain scan
	// persists nothing but its report.
	Enabled bool `yaml:"enabled"`

	// Path is the bbolt database file.
	Path string `yaml:"path"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// Debounce is the quiet period after the last event on a file before
	// it is rescanned.
	Debounce time.Duration `yaml:"debounce"`

	// Every is an optional cron spec ("*/10 * * * *", "@every 1h") for
	// periodic full rescans.
	Every string `yaml:"every"`
}

// Config represents threadscan configuration options
type Config struct {
	// Extensions are the file-name suffixes scanned.
	Extensions []string `yaml:"extensions"`

	// ExcludeDirs are directory names or globs skipped during the walk.
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// Workers is the number of files scanned concurrently.
	Workers int `yaml:"workers"`

	// OutputDir is where the report is written. Empty means the working directory.
	OutputDir string `yaml:"output_dir"`

	// Format is the report format: text, json, markdown or html.
	Format string `yaml:"format"`

	// LogLevel is the minimum console log level.
	LogLevel string `yaml:"log_level"`

	// RulesFile is an optional YAML rule table merged with the built-in rules.
	RulesFile string `yaml:"rules_file"`

	// ReplaceDefaultRules uses RulesFile alone instead of merging.
	ReplaceDefaultRules bool `yaml:"replace_default_rules"`

	Cache CacheConfig `yaml:"cache"`
	Watch WatchConfig `yaml:"watch"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Extensions: append([]string(nil), collector.DefaultExtensions...),
		Workers:    1,
		Format:     string(report.FormatText),
		LogLevel:   "info",
		Cache: CacheConfig{
			Enabled: false,
			Path:    ".threadscan/cache.db",
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
	}
}

// LoadConfig loads configuration from path on top of the defaults.
// A missing file yields the defaults. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// decode overlays data onto c. Keys absent from data keep their current value.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// CollectorOptions returns the file filter for the collector and watcher.
func (c *Config) CollectorOptions() collector.Options {
	return collector.Options{Extensions: c.Extensions, ExcludeDirs: c.ExcludeDirs}
}

// ReportFormat returns the parsed report format.
func (c *Config) ReportFormat() (report.Format, error) {
	return report.ParseFormat(c.Format)
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}
	if _, err := c.ReportFormat(); err != nil {
		return err
	}
	for _, ext := range c.Extensions {
		if ext == "" {
			return errors.New("extensions cannot contain an empty entry")
		}
	}
	if c.ReplaceDefaultRules && c.RulesFile == "" {
		return errors.New("replace_default_rules requires rules_file")
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return errors.New("cache.path cannot be empty when the cache is enabled")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be >= 0, got %v", c.Watch.Debounce)
	}
	if c.Watch.Every != "" {
		if _, err := cron.ParseStandard(c.Watch.Every); err != nil {
			return fmt.Errorf("invalid watch.every %q: %w", c.Watch.Every, err)
		}
	}
	return nil
}

// YAML renders the effective configuration in file form.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
