package app

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smartcity/predictor/internal/config"
	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/modelstore"
	"github.com/smartcity/predictor/internal/repository/postgres"
	"github.com/smartcity/predictor/internal/repository/sqlite"
)

// writeHistory writes n days of a smooth seasonal series
func writeHistory(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,temperature,humidity,wind_speed,precipitation,pm25,traffic_index\n")
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		d := start.AddDate(0, 0, i)
		temp := 10 - 15*math.Cos(2*math.Pi*float64(d.YearDay())/365)
		pm25 := 20 + math.Max(0, 5-temp)*2 + float64(i%5)
		traffic := 50.0 + float64(i%7)*3
		fmt.Fprintf(&b, "%s,%.1f,60,3,0,%.1f,%.1f\n", d.Format(domain.DateLayout), temp, pm25, traffic)
	}
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testConfig(t *testing.T, historyPath string) *config.Config {
	t.Helper()
	// provider that is always down
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(down.Close)

	tun := config.DefaultTunables()
	tun.Training.Boosting.Estimators = 30
	tun.Training.Forest.Estimators = 10
	return &config.Config{
		HistoryPath:     historyPath,
		ModelDir:        filepath.Join(t.TempDir(), "models"),
		ForecastURL:     down.URL,
		AirQualityURL:   down.URL,
		TextGenTimeout:  time.Second,
		TextGenWorkers:  2,
		ForecastTTL:     time.Hour,
		ForecastTimeout: time.Second,
		ForecastDays:    3,
		Latitude:        domain.AlmatyCenterLat,
		Longitude:       domain.AlmatyCenterLon,
		Timezone:        "Asia/Almaty",
		Tunables:        tun,
	}
}

func TestNew_TrainsFromHistory(t *testing.T) {
	cfg := testConfig(t, writeHistory(t, 200))

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 200, a.History.Len())
	assert.False(t, a.Stats.Empty())
	assert.True(t, a.Models.Trained())
	assert.False(t, a.TextGen.Available())
	assert.IsType(t, &postgres.MockRepository{}, a.Repo)
	assert.Equal(t, "Asia/Almaty", a.Location.String())
	assert.FileExists(t, filepath.Join(cfg.ModelDir, modelstore.ManifestFile))

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNew_WithoutHistoryDegrades(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.csv"))
	cfg.Timezone = "Mars/Olympus"

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.History.Empty())
	assert.True(t, a.Stats.Empty())
	assert.False(t, a.Models.Trained())
	assert.Equal(t, time.UTC, a.Location)

	resp := a.Pipeline.Predict(context.Background(), domain.PredictionRequest{Date: "2024-07-10"})
	assert.Equal(t, "statistical", resp.Method)
	assert.Equal(t, 0.3, resp.ConfidenceScore)
	assert.True(t, resp.IsMock)
	assert.Contains(t, resp.Degradations, "forecast_unavailable")
}

func TestNew_SQLiteRepository(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.csv"))
	cfg.SQLitePath = filepath.Join(t.TempDir(), "logs.db")

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.IsType(t, &sqlite.Repository{}, a.Repo)
	a.Pipeline.Predict(context.Background(), domain.PredictionRequest{Date: "2024-07-10"})
	a.Logs.WaitBackground()

	logs, err := a.Logs.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	a.Close()
}
