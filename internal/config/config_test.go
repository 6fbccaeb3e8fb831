// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv unsets every CRCAFE_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvBaseURL, EnvIdleTimeoutMs, EnvIdleCheckMs, EnvStoreBackend,
		EnvStorePath, EnvLogLevel, EnvNoColor, EnvRequestsPerSecond,
	} {
		t.Setenv(name, "")
	}
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	require.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	require.Equal(t, 15*time.Minute, cfg.Session.IdleTimeout())
	require.Equal(t, 30*time.Second, cfg.Session.IdleCheckInterval())
	require.Equal(t, int64(900000), cfg.Session.IdleTimeoutMs)
	require.Equal(t, BackendFile, cfg.Storage.Backend)
	require.Equal(t, "warn", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBaseURL, "https://pos.example.com/api")
	t.Setenv(EnvIdleTimeoutMs, "60000")
	t.Setenv(EnvIdleCheckMs, "1000")
	t.Setenv(EnvStoreBackend, "SQLite")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvNoColor, "1")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	require.Equal(t, "https://pos.example.com/api", cfg.API.BaseURL)
	require.Equal(t, time.Minute, cfg.Session.IdleTimeout())
	require.Equal(t, time.Second, cfg.Session.IdleCheckInterval())
	require.Equal(t, BackendSQLite, cfg.Storage.Backend)
	require.Equal(t, "debug", cfg.Log.Level)
	require.False(t, cfg.UI.Color)
}

func TestConfig_EnvOverridesFallBackOnBadNumbers(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"garbage", "fifteen minutes"},
		{"zero", "0"},
		{"negative", "-5000"},
		{"float", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvIdleTimeoutMs, tt.value)
			t.Setenv(EnvIdleCheckMs, tt.value)

			cfg := Default()
			cfg.ApplyEnvOverrides()

			require.Equal(t, DefaultIdleTimeout, cfg.Session.IdleTimeout())
			require.Equal(t, DefaultIdleCheckInterval, cfg.Session.IdleCheckInterval())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://x" }, "api.base_url"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"zero timeout", func(c *Config) { c.Session.IdleTimeoutMs = 0 }, "session.idle_timeout_ms"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"negative ttl", func(c *Config) { c.Cache.MenuTTLSecs = -1 }, "cache.menu_ttl_secs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_SaveAndLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.API.BaseURL = "https://cafe.example.com/api"
	cfg.Session.IdleTimeoutMs = 120000
	cfg.Storage.Backend = BackendMemory
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://cafe.example.com/api", loaded.API.BaseURL)
	require.Equal(t, 2*time.Minute, loaded.Session.IdleTimeout())
	require.Equal(t, BackendMemory, loaded.Storage.Backend)
}

func TestConfig_LoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Equal(t, Default().Session, cfg.Session)
}

func TestConfig_LoadFillsPartialFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\nbase_url = \"https://x.test/api\"\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://x.test/api", cfg.API.BaseURL)
	require.Equal(t, DefaultIdleTimeout, cfg.Session.IdleTimeout())
	require.Equal(t, BackendFile, cfg.Storage.Backend)
}

func TestConfig_LoadDotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv(EnvIdleTimeoutMs))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(EnvIdleTimeoutMs+"=5000\n"), 0600))
	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv(EnvIdleTimeoutMs) })

	cfg := Default()
	cfg.ApplyEnvOverrides()
	require.Equal(t, 5*time.Second, cfg.Session.IdleTimeout())

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestConfig_StorePath(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = "/tmp/custom.json"
	p, err := cfg.StorePath()
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.json", p)

	cfg.Storage.Path = ""
	cfg.Storage.Backend = BackendSQLite
	p, err = cfg.StorePath()
	require.NoError(t, err)
	require.Equal(t, "session.db", filepath.Base(p))
}
