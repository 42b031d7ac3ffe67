package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T, dir string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(newTestViper(t, t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "http://tinyurl.com/", cfg.Server.URLPrefix)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Shortener.CodeLength)
	assert.Equal(t, "23456789abcdefghijkmnpqrstuvwxyz", cfg.Shortener.Alphabet)
	assert.Equal(t, 5, cfg.Shortener.MaxAttempts)
	assert.False(t, cfg.Shortener.SecureRandom)
	assert.Equal(t, ClickTransportDirect, cfg.Clicks.Transport)
	assert.Equal(t, DropOldest, cfg.Clicks.DropPolicy)
	assert.Equal(t, 5*time.Second, cfg.Clicks.WriteTimeout)
	assert.Equal(t, 10, cfg.Stats.Workers)
	assert.Equal(t, time.Hour, cfg.Redis.CacheTTL)
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
store:
  driver: sqlite
  sqlite_path: /tmp/tinyurl-test.db
shortener:
  max_attempts: 3
clicks:
  drop_policy: reject_new
  write_timeout: 250ms
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("PG_HOST", "db.internal")
	t.Setenv("STATS_WORKERS", "4")

	cfg, err := load(newTestViper(t, dir))
	require.NoError(t, err)

	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/tinyurl-test.db", cfg.Store.SQLitePath)
	assert.Equal(t, 3, cfg.Shortener.MaxAttempts)
	assert.Equal(t, RejectNew, cfg.Clicks.DropPolicy)
	assert.Equal(t, 250*time.Millisecond, cfg.Clicks.WriteTimeout)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 4, cfg.Stats.Workers)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := load(newTestViper(t, t.TempDir()))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }},
		{"sqlite without path", func(c *Config) { c.Store.Driver = StoreDriverSQLite; c.Store.SQLitePath = "" }},
		{"zero code length", func(c *Config) { c.Shortener.CodeLength = 0 }},
		{"zero attempts", func(c *Config) { c.Shortener.MaxAttempts = 0 }},
		{"unknown transport", func(c *Config) { c.Clicks.Transport = "kafka" }},
		{"unknown drop policy", func(c *Config) { c.Clicks.DropPolicy = "block" }},
		{"zero queue", func(c *Config) { c.Clicks.QueueSize = 0 }},
		{"zero stats workers", func(c *Config) { c.Stats.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
