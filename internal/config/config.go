// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for crcafe.
//
// Configuration file locations (in order of precedence):
//   - Environment variables (CRCAFE_*), optionally seeded from ./.env
//   - ~/.crcafe/config.toml
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Default values for the session freshness policy.
const (
	// DefaultIdleTimeout is how long a session may go without user activity.
	DefaultIdleTimeout = 15 * time.Minute

	// DefaultIdleCheckInterval is how often a live session is checked for idleness.
	DefaultIdleCheckInterval = 30 * time.Second

	// DefaultBaseURL is the backend API root.
	DefaultBaseURL = "http://localhost:8080/api"
)

// Environment variables understood by ApplyEnvOverrides.
const (
	EnvBaseURL           = "CRCAFE_API_BASE_URL"
	EnvIdleTimeoutMs     = "CRCAFE_IDLE_TIMEOUT_MS"
	EnvIdleCheckMs       = "CRCAFE_IDLE_CHECK_INTERVAL_MS"
	EnvStoreBackend      = "CRCAFE_STORE"
	EnvStorePath         = "CRCAFE_STORE_PATH"
	EnvLogLevel          = "CRCAFE_LOG_LEVEL"
	EnvNoColor           = "CRCAFE_NO_COLOR"
	EnvRequestsPerSecond = "CRCAFE_REQUESTS_PER_SECOND"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete crcafe configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// API is the backend connection configuration
	API APIConfig `toml:"api" json:"api"`

	// Session is the idle-timeout policy
	Session SessionConfig `toml:"session" json:"session"`

	// Storage is where the session survives between runs
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Cache configuration
	Cache CacheConfig `toml:"cache" json:"cache"`

	// Log configuration
	Log LogConfig `toml:"log" json:"log"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`
}

// APIConfig contains backend connection configuration.
type APIConfig struct {
	// BaseURL is the API root, e.g. https://pos.example.com/api
	BaseURL string `toml:"base_url" json:"base_url"`
	// TimeoutSecs bounds a single HTTP exchange
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// RequestsPerSecond throttles outbound calls (0 = unlimited)
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	// Burst is the limiter burst size
	Burst int `toml:"burst" json:"burst"`
	// BreakerEnabled wraps the transport in a circuit breaker
	BreakerEnabled bool `toml:"breaker_enabled" json:"breaker_enabled"`
}

// SessionConfig contains the idle-timeout policy. Both mechanisms (startup
// check and live check) use IdleTimeoutMs.
type SessionConfig struct {
	IdleTimeoutMs       int64 `toml:"idle_timeout_ms" json:"idle_timeout_ms"`
	IdleCheckIntervalMs int64 `toml:"idle_check_interval_ms" json:"idle_check_interval_ms"`
}

// IdleTimeout returns the idle threshold as a duration.
func (s SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutMs) * time.Millisecond
}

// IdleCheckInterval returns the live-check poll interval as a duration.
func (s SessionConfig) IdleCheckInterval() time.Duration {
	return time.Duration(s.IdleCheckIntervalMs) * time.Millisecond
}

// StorageConfig selects the persisted-state backend.
type StorageConfig struct {
	// Backend is one of "memory", "file", "sqlite"
	Backend string `toml:"backend" json:"backend"`
	// Path is the store file (empty = ~/.crcafe/session.json or session.db)
	Path string `toml:"path" json:"path"`
	// Encrypt seals stored values with a local key file
	Encrypt bool `toml:"encrypt" json:"encrypt"`
	// KeyPath is the key file used when Encrypt is set (empty = ~/.crcafe/store.key)
	KeyPath string `toml:"key_path" json:"key_path"`
}

// CacheConfig contains response cache configuration.
type CacheConfig struct {
	// MenuTTLSecs is how long the menu item list is reused (0 = no caching)
	MenuTTLSecs int `toml:"menu_ttl_secs" json:"menu_ttl_secs"`
}

// LogConfig contains diagnostic logging configuration.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Pretty bool   `toml:"pretty" json:"pretty"`
}

// UIConfig contains terminal output configuration.
type UIConfig struct {
	Color    bool   `toml:"color" json:"color"`
	Currency string `toml:"currency" json:"currency"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		API: APIConfig{
			BaseURL:           DefaultBaseURL,
			TimeoutSecs:       30,
			RequestsPerSecond: 0,
			Burst:             5,
			BreakerEnabled:    true,
		},

		Session: SessionConfig{
			IdleTimeoutMs:       DefaultIdleTimeout.Milliseconds(),
			IdleCheckIntervalMs: DefaultIdleCheckInterval.Milliseconds(),
		},

		Storage: StorageConfig{
			Backend: BackendFile,
		},

		Cache: CacheConfig{
			MenuTTLSecs: 60,
		},

		Log: LogConfig{
			Level:  "warn",
			Pretty: true,
		},

		UI: UIConfig{
			Color:    true,
			Currency: "INR",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the crcafe configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".crcafe"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// StorePath returns the effective store file for the configured backend.
func (c *Config) StorePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.Storage.Backend == BackendSQLite {
		return filepath.Join(dir, "session.db"), nil
	}
	return filepath.Join(dir, "session.json"), nil
}

// KeyPath returns the effective key file for sealed storage.
func (c *Config) KeyPath() (string, error) {
	if c.Storage.KeyPath != "" {
		return c.Storage.KeyPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "store.key"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads ./.env into the process environment. Variables that are
// already set win. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load loads configuration from path, or from the default TOML location when
// path is empty. A missing file yields defaults. Environment overrides are
// applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPathTOML()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config: %w", err)
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config: %w", statErr)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	if cfg.API.TimeoutSecs <= 0 {
		cfg.API.TimeoutSecs = defaults.API.TimeoutSecs
	}
	if cfg.API.Burst <= 0 {
		cfg.API.Burst = defaults.API.Burst
	}
	if cfg.Session.IdleTimeoutMs <= 0 {
		cfg.Session.IdleTimeoutMs = defaults.Session.IdleTimeoutMs
	}
	if cfg.Session.IdleCheckIntervalMs <= 0 {
		cfg.Session.IdleCheckIntervalMs = defaults.Session.IdleCheckIntervalMs
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.UI.Currency == "" {
		cfg.UI.Currency = defaults.UI.Currency
	}
}

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Numeric settings that are missing, malformed or not positive are ignored,
// so the value already in the config (ultimately the default) stays.
//
//   - CRCAFE_API_BASE_URL: overrides api.base_url
//   - CRCAFE_IDLE_TIMEOUT_MS: overrides session.idle_timeout_ms
//   - CRCAFE_IDLE_CHECK_INTERVAL_MS: overrides session.idle_check_interval_ms
//   - CRCAFE_STORE / CRCAFE_STORE_PATH: override storage.backend / storage.path
//   - CRCAFE_LOG_LEVEL: overrides log.level
//   - CRCAFE_NO_COLOR: disables ui.color
//   - CRCAFE_REQUESTS_PER_SECOND: overrides api.requests_per_second
func (c *Config) ApplyEnvOverrides() {
	if base := os.Getenv(EnvBaseURL); base != "" {
		c.API.BaseURL = base
	}

	if ms, ok := positiveIntEnv(EnvIdleTimeoutMs); ok {
		c.Session.IdleTimeoutMs = ms
	}
	if ms, ok := positiveIntEnv(EnvIdleCheckMs); ok {
		c.Session.IdleCheckIntervalMs = ms
	}

	if backend := os.Getenv(EnvStoreBackend); backend != "" {
		c.Storage.Backend = strings.ToLower(backend)
	}
	if path := os.Getenv(EnvStorePath); path != "" {
		c.Storage.Path = path
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = strings.ToLower(level)
	}

	if noColor := os.Getenv(EnvNoColor); noColor != "" {
		c.UI.Color = !(noColor == "1" || strings.ToLower(noColor) == "true")
	}

	if rps := os.Getenv(EnvRequestsPerSecond); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil && v >= 0 {
			c.API.RequestsPerSecond = v
		}
	}
}

func positiveIntEnv(name string) (int64, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to path (default location when empty).
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := ConfigPathTOML()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# crcafe configuration file")
	fmt.Fprintln(file, "# Generated by crcafe - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true,
	"error": true, "fatal": true, "panic": true, "disabled": true,
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme),
		})
	}

	if c.API.TimeoutSecs <= 0 {
		errs = append(errs, ValidationError{Field: "api.timeout_secs", Message: "must be positive"})
	}
	if c.API.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{Field: "api.requests_per_second", Message: "cannot be negative"})
	}

	if c.Session.IdleTimeoutMs <= 0 {
		errs = append(errs, ValidationError{Field: "session.idle_timeout_ms", Message: "must be positive"})
	}
	if c.Session.IdleCheckIntervalMs <= 0 {
		errs = append(errs, ValidationError{Field: "session.idle_check_interval_ms", Message: "must be positive"})
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: memory, file, sqlite", c.Storage.Backend),
		})
	}

	if c.Cache.MenuTTLSecs < 0 {
		errs = append(errs, ValidationError{Field: "cache.menu_ttl_secs", Message: "cannot be negative"})
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unknown level '%s'", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// String returns a JSON representation of the config for display.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
