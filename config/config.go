// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Page      PageConfig      `yaml:"page"`
	Transport TransportConfig `yaml:"transport"`
	Sync      SyncConfig      `yaml:"sync"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Inspector InspectorConfig `yaml:"inspector"`
}

// PageConfig points the client at a mono page.
type PageConfig struct {
	URL string `yaml:"url"` // pulls and events are POSTed here
	// DocumentFile loads the initial document from disk instead of GET url.
	DocumentFile string `yaml:"document_file,omitempty"`
}

// TransportConfig configures requests to the page.
type TransportConfig struct {
	EventTimeout time.Duration     `yaml:"event_timeout"` // negative disables the timeout
	Headers      map[string]string `yaml:"headers,omitempty"`
}

// SyncConfig configures the sync loop.
type SyncConfig struct {
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // served on the inspector at /metrics
}

// InspectorConfig configures the local inspector HTTP server.
type InspectorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	MONO_PAGE_URL                - Page URL (required)
//	MONO_PAGE_DOCUMENT_FILE      - Load the document from this file
//	MONO_TRANSPORT_EVENT_TIMEOUT - Event delivery timeout (default: 5s)
//	MONO_SYNC_RETRY_BACKOFF      - Delay between failed pulls (default: 1s)
//	MONO_LOG_LEVEL               - Log level: debug, info, warn, error (default: info)
//	MONO_LOG_FORMAT              - Log format: json or console (default: json)
//	MONO_METRICS_ENABLED         - Collect metrics (default: true)
//	MONO_INSPECTOR_ENABLED       - Serve the inspector (default: false)
//	MONO_INSPECTOR_ADDR          - Inspector address (default: 127.0.0.1:9191)
func LoadFromEnv() (*Config, error) {
	cfg := Config{Metrics: MetricsConfig{Enabled: true}}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set MONO_PAGE_URL")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("MONO_PAGE_URL") != ""
}

// applyEnvOverrides applies MONO_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MONO_PAGE_URL"); v != "" {
		cfg.Page.URL = v
	}
	if v := os.Getenv("MONO_PAGE_DOCUMENT_FILE"); v != "" {
		cfg.Page.DocumentFile = v
	}

	if v := os.Getenv("MONO_TRANSPORT_EVENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Transport.EventTimeout = d
		}
	}
	if v := os.Getenv("MONO_SYNC_RETRY_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.RetryBackoff = d
		}
	}

	if v := os.Getenv("MONO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MONO_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("MONO_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}

	if v := os.Getenv("MONO_INSPECTOR_ENABLED"); v != "" {
		cfg.Inspector.Enabled = parseBool(v)
	}
	if v := os.Getenv("MONO_INSPECTOR_ADDR"); v != "" {
		cfg.Inspector.Addr = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Transport.EventTimeout == 0 {
		cfg.Transport.EventTimeout = 5 * time.Second
	}
	if cfg.Sync.RetryBackoff == 0 {
		cfg.Sync.RetryBackoff = time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Inspector.Addr == "" {
		cfg.Inspector.Addr = "127.0.0.1:9191"
	}
}

func validate(cfg *Config) error {
	if cfg.Page.URL == "" {
		return fmt.Errorf("page.url is required")
	}
	u, err := url.Parse(cfg.Page.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("page.url must be an absolute http(s) URL, got %q", cfg.Page.URL)
	}

	if cfg.Sync.RetryBackoff < 0 {
		return fmt.Errorf("sync.retry_backoff must not be negative, got %s", cfg.Sync.RetryBackoff)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if cfg.Inspector.Enabled && cfg.Inspector.Addr == "" {
		return fmt.Errorf("inspector.addr is required when inspector.enabled is true")
	}

	return nil
}
