// Package config loads evidence-lens runtime configuration from file and
// environment.
//
// This is process configuration (where settings live, how pages are
// extracted, logging and telemetry). Provider credentials and the prompt
// template are user settings and live in the settings store.
//
// Precedence (highest to lowest):
//  1. Environment variables (EVIDENCE_LENS_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .evidence-lens.yaml in current directory
//  2. ~/.config/evidence-lens/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Extractor names.
const (
	ExtractorHTTP    = "http"
	ExtractorBrowser = "browser"
)

// Config holds all evidence-lens configuration.
type Config struct {
	// Settings store
	SettingsBackend string `yaml:"settings_backend"` // file, sqlite or memory
	SettingsPath    string `yaml:"settings_path"`

	// Page extraction
	Extractor       string `yaml:"extractor"`        // http or browser
	BrowserHeadless *bool  `yaml:"browser_headless"` // nil means headless

	// Result cache and HTTP
	CacheTTL    string `yaml:"cache_ttl"`    // Go duration string, e.g. "5m"
	HTTPTimeout string `yaml:"http_timeout"` // Go duration string, e.g. "60s"

	// Panel
	Theme string `yaml:"theme"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // console or json
	LogFile   string `yaml:"log_file"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"

	// Parsed durations (not from YAML, set after loading)
	CacheTTLDuration    time.Duration `yaml:"-"`
	HTTPTimeoutDuration time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		SettingsBackend: "file",
		Extractor:       ExtractorHTTP,
		CacheTTL:        "0",
		HTTPTimeout:     "0",
		Theme:           "dark",
		LogLevel:        "warn",
		LogFormat:       "console",
	}
}

// Headless reports whether the browser extractor runs without a window.
func (c *Config) Headless() bool {
	return c.BrowserHeadless == nil || *c.BrowserHeadless
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	// Try to load config file
	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	// Environment variables override everything
	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Parse durations
	var err error
	cfg.CacheTTLDuration, err = parseDurationOrDisable(cfg.CacheTTL, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid cache TTL %q: %w", cfg.CacheTTL, err)
	}
	cfg.HTTPTimeoutDuration, err = parseDurationOrDisable(cfg.HTTPTimeout, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP timeout %q: %w", cfg.HTTPTimeout, err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SettingsBackend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("invalid settings_backend %q (supported: file, sqlite, memory)", c.SettingsBackend)
	}
	switch c.Extractor {
	case ExtractorHTTP, ExtractorBrowser:
	default:
		return fmt.Errorf("invalid extractor %q (supported: http, browser)", c.Extractor)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log_format %q (supported: console, json)", c.LogFormat)
	}
	return nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	// 1. Current directory
	if data, err := os.ReadFile(".evidence-lens.yaml"); err == nil {
		return ".evidence-lens.yaml", data, nil
	}

	// 2. ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "evidence-lens", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.SettingsBackend != "" {
		cfg.SettingsBackend = file.SettingsBackend
	}
	if file.SettingsPath != "" {
		cfg.SettingsPath = file.SettingsPath
	}
	if file.Extractor != "" {
		cfg.Extractor = file.Extractor
	}
	if file.BrowserHeadless != nil {
		cfg.BrowserHeadless = file.BrowserHeadless
	}
	if file.CacheTTL != "" {
		cfg.CacheTTL = file.CacheTTL
	}
	if file.HTTPTimeout != "" {
		cfg.HTTPTimeout = file.HTTPTimeout
	}
	if file.Theme != "" {
		cfg.Theme = file.Theme
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogFormat != "" {
		cfg.LogFormat = file.LogFormat
	}
	if file.LogFile != "" {
		cfg.LogFile = file.LogFile
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"EVIDENCE_LENS_SETTINGS_BACKEND", &cfg.SettingsBackend},
		{"EVIDENCE_LENS_SETTINGS_PATH", &cfg.SettingsPath},
		{"EVIDENCE_LENS_EXTRACTOR", &cfg.Extractor},
		{"EVIDENCE_LENS_CACHE_TTL", &cfg.CacheTTL},
		{"EVIDENCE_LENS_HTTP_TIMEOUT", &cfg.HTTPTimeout},
		{"EVIDENCE_LENS_THEME", &cfg.Theme},
		{"EVIDENCE_LENS_LOG_LEVEL", &cfg.LogLevel},
		{"EVIDENCE_LENS_LOG_FORMAT", &cfg.LogFormat},
		{"EVIDENCE_LENS_LOG_FILE", &cfg.LogFile},
		{"OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTELEndpoint},
		{"OTEL_EXPORTER_OTLP_HEADERS", &cfg.OTELHeaders},
	}
	for _, e := range strs {
		if v := os.Getenv(e.name); v != "" {
			*e.dst = v
		}
	}

	if v := os.Getenv("EVIDENCE_LENS_BROWSER_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid EVIDENCE_LENS_BROWSER_HEADLESS %q: %w", v, err)
		}
		cfg.BrowserHeadless = &b
	}
	return nil
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	if s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
