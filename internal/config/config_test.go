package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"BETS_HTTP_ADDR", "JWT_SECRET", "DRAW_PROVIDER_URL", "DRAW_PROVIDER_TIMEOUT", "DRAW_PROVIDER_RPS", "BETS_SWEEP_SCHEDULE", "BETS_RECONCILE_CONCURRENCY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "https://api.guidi.dev.br/loteria", cfg.ProviderURL)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 5.0, cfg.ProviderRPS)
	assert.Equal(t, "@every 10m", cfg.SweepSchedule)
	assert.Equal(t, 4, cfg.BatchConcurrency)
	assert.True(t, cfg.DevMode())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BETS_HTTP_ADDR", ":9090")
	t.Setenv("DRAW_PROVIDER_TIMEOUT", "3s")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BETS_SWEEP_SCHEDULE", "*/5 * * * *")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "*/5 * * * *", cfg.SweepSchedule)
	assert.False(t, cfg.DevMode())
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	os.Unsetenv("REDIS_URL")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("REDIS_URL=redis://localhost:6379/0\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	os.Unsetenv("REDIS_URL")
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DRAW_PROVIDER_TIMEOUT", "not-a-duration")
	_, err := Load("")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{HTTPAddr: ":1", ProviderTimeout: time.Second, SweepBatchSize: -1}.Validate())
	assert.NoError(t, Config{HTTPAddr: ":1", ProviderTimeout: time.Second}.Validate())
}
