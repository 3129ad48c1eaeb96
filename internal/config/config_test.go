package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Database = DatabaseConfig{Driver: "sqlite", DSN: "bankrec.db"}
	cfg.Events.Brokers = []string{"kafka-1:9092"}

	path := filepath.Join(t.TempDir(), "bankrec.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Database, got.Database)
	assert.Equal(t, cfg.Events, got.Events)
	assert.InDelta(t, cfg.Matching.AutoConfirm, got.Matching.AutoConfirm, 0.001)
	assert.Equal(t, cfg.Discrepancies, got.Discrepancies)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Matching.DateWindowDays)
	assert.Equal(t, 1, cfg.Matching.SameDayToleranceDays)
	assert.InDelta(t, 0.80, cfg.Matching.AutoConfirm, 0.001)
	assert.InDelta(t, 0.20, cfg.Matching.ListingThreshold, 0.001)
	assert.Equal(t, 4, cfg.Matching.MaxCombinationSize)
	assert.Equal(t, 5, cfg.Discrepancies.GracePeriodDays)
	assert.Equal(t, 7, cfg.Discrepancies.OverdueDays)
	assert.Equal(t, 6, cfg.Reports.TrendMonths)
	assert.Empty(t, cfg.Events.Brokers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bankrec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("matching:\n  date_window_days: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Matching.DateWindowDays)
	assert.Equal(t, 4, cfg.Matching.MaxCombinationSize)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bankrec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BANKREC_PORT":          "9090",
		"BANKREC_DB_DRIVER":     "Postgres",
		"BANKREC_DB_DSN":        "postgres://localhost/bankrec",
		"BANKREC_KAFKA_BROKERS": "a:9092, b:9092,",
		"BANKREC_RATE_LIMIT":    "2.5",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, ApplyEnv(cfg, lookup))
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/bankrec", cfg.Database.DSN)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Events.Brokers)
	assert.InDelta(t, 2.5, cfg.Server.RateLimitPerSecond, 0.001)
	assert.Equal(t, "info", cfg.Log.Level)

	env["BANKREC_RATE_LIMIT"] = "fast"
	assert.Error(t, ApplyEnv(Default(), lookup))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }},
		{"sqlite without dsn", func(c *Config) { c.Database.Driver = "sqlite" }},
		{"tolerance beyond window", func(c *Config) { c.Matching.SameDayToleranceDays = 4 }},
		{"combination too small", func(c *Config) { c.Matching.MaxCombinationSize = 1 }},
		{"listing above auto", func(c *Config) { c.Matching.ListingThreshold = 0.9 }},
		{"negative grace", func(c *Config) { c.Discrepancies.GracePeriodDays = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolveMissingFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BANKREC_PORT", "7070")

	cfg, err := Resolve("bankrec.yaml")
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
}

func TestResolveReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("BANKREC_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("BANKREC_LOG_LEVEL"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BANKREC_LOG_LEVEL=debug\n"), 0o644))

	cfg, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
