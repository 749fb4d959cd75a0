package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "GO_ENV", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL", "SQLITE_PATH",
	"HISTORY_PATH", "HISTORY_INTERPOLATED_BEFORE", "MODEL_DIR", "GROQ_API_KEY",
	"GROQ_MODEL", "TEXTGEN_TIMEOUT", "TEXTGEN_WORKERS", "TEXTGEN_RPM",
	"OPEN_METEO_FORECAST_URL", "OPEN_METEO_AIR_QUALITY_URL",
	"FORECAST_TTL", "FORECAST_TIMEOUT", "FORECAST_DAYS", "CITY_LAT", "CITY_LON",
	"CITY_TIMEZONE", "LIVE_ENRICH", "TUNABLES_PATH",
}

// clearEnv blanks every variable Load reads; empty means default
func clearEnv(t *testing.T) {
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "models", cfg.ModelDir)
	assert.Equal(t, 15*time.Second, cfg.TextGenTimeout)
	assert.Equal(t, 4, cfg.TextGenWorkers)
	assert.Equal(t, time.Hour, cfg.ForecastTTL)
	assert.Equal(t, 3, cfg.ForecastDays)
	assert.Equal(t, "Asia/Almaty", cfg.Timezone)
	assert.True(t, cfg.LiveEnrich)
	assert.True(t, cfg.HistoryInterpolatedBefore.IsZero())
	assert.Equal(t, DefaultTunables(), cfg.Tunables)
	assert.Equal(t, 0.70, cfg.Tunables.Blend.ModelWeight)
	assert.Equal(t, 0.55, cfg.Tunables.Baseline.Base)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("GO_ENV", "production")
	t.Setenv("TEXTGEN_TIMEOUT", "3s")
	t.Setenv("FORECAST_DAYS", "2")
	t.Setenv("CITY_LAT", "51.1694")
	t.Setenv("LIVE_ENRICH", "false")
	t.Setenv("HISTORY_INTERPOLATED_BEFORE", "2020-04-09")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3*time.Second, cfg.TextGenTimeout)
	assert.Equal(t, 2, cfg.ForecastDays)
	assert.Equal(t, 51.1694, cfg.Latitude)
	assert.False(t, cfg.LiveEnrich)
	assert.Equal(t, time.Date(2020, 4, 9, 0, 0, 0, 0, time.UTC), cfg.HistoryInterpolatedBefore)
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEXTGEN_WORKERS", "four")
	t.Setenv("FORECAST_TTL", "soon")
	t.Setenv("FORECAST_DAYS", "7")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEXTGEN_WORKERS")
	assert.Contains(t, err.Error(), "FORECAST_TTL")
	assert.Contains(t, err.Error(), "FORECAST_DAYS")
}

func TestLoadTunables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
blend:
  model_weight: 0.6
baseline:
  per_sample: 0.001
training:
  seed: 7
  boosting:
    estimators: 150
`), 0o644))

	tun := DefaultTunables()
	require.NoError(t, LoadTunables(path, &tun))

	assert.Equal(t, 0.6, tun.Blend.ModelWeight)
	assert.Equal(t, 0.95, tun.Blend.ConfidenceCap)
	assert.Equal(t, 0.001, tun.Baseline.PerSample)
	assert.Equal(t, 0.55, tun.Baseline.Base)
	assert.Equal(t, int64(7), tun.Training.Seed)
	assert.Equal(t, 150, tun.Training.Boosting.Estimators)
	assert.Equal(t, 5, tun.Training.Boosting.MaxDepth)
	assert.Equal(t, 200, tun.Training.Forest.Estimators)
}

func TestLoadTunables_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("blend:\n  model_weight: 1.5\n"), 0o644))

	tun := DefaultTunables()
	err := LoadTunables(path, &tun)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model_weight")

	assert.Error(t, LoadTunables(filepath.Join(t.TempDir(), "missing.yaml"), &tun))
}

func TestLoad_TunablesPath(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "tunables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("blend:\n  confidence_cap: 0.9\n"), 0o644))
	t.Setenv("TUNABLES_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Tunables.Blend.ConfidenceCap)
}
