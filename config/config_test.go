package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "./settlement.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, time.Hour, cfg.Scheduler.IntervalDuration())
	assert.Equal(t, 100, cfg.Scheduler.RunRetention)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeoutDuration())
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	// GIVEN: a file setting only some keys
	path := filepath.Join(t.TempDir(), "settlement.toml")
	content := `
[server]
port = 9090
allowed_origins = ["https://billing.example.com"]

[database]
path = "/var/lib/settlement/data.db"

[log]
level = "debug"
format = "json"

[scheduler]
enabled = false
interval = "15m"
run_retention = 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// WHEN
	cfg, err := Load(path)

	// THEN: file values win, untouched keys keep their defaults
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://billing.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/var/lib/settlement/data.db", cfg.Database.Path)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.IntervalDuration())
	assert.Equal(t, 10, cfg.Scheduler.RunRetention)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"bad interval", func(c *Config) { c.Scheduler.Interval = "soon" }},
		{"negative run retention", func(c *Config) { c.Scheduler.RunRetention = -1 }},
		{"negative timeout", func(c *Config) { c.Server.ReadTimeout = "-1s" }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = \"eighty\"\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
