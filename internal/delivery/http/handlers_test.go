package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smartcity/predictor/internal/app"
	"github.com/smartcity/predictor/internal/config"
	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/forecast"
)

type staticForecast struct {
	f      *domain.Forecast
	status forecast.Status
}

func (s staticForecast) Get(context.Context) (*domain.Forecast, forecast.Status) {
	return s.f, s.status
}

func writeHistory(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,temperature,humidity,wind_speed,precipitation,pm25,traffic_index\n")
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		d := start.AddDate(0, 0, i)
		temp := 10 - 15*math.Cos(2*math.Pi*float64(d.YearDay())/365)
		pm25 := 20 + math.Max(0, 5-temp)*2 + float64(i%5)
		fmt.Fprintf(&b, "%s,%.1f,60,3,0,%.1f,%.1f\n", d.Format(domain.DateLayout), temp, pm25, 50.0+float64(i%7)*3)
	}
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

type fixture struct {
	server *fiber.App
	app    *app.App
}

// newFixture wires the full service context against a provider that is
// always down. rows == 0 means no history file.
func newFixture(t *testing.T, rows int, source func(*app.App) Deps) *fixture {
	t.Helper()
	down := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusServiceUnavailable)
	}))
	t.Cleanup(down.Close)

	historyPath := filepath.Join(t.TempDir(), "missing.csv")
	if rows > 0 {
		historyPath = writeHistory(t, rows)
	}

	tun := config.DefaultTunables()
	tun.Training.Boosting.Estimators = 30
	tun.Training.Forest.Estimators = 10
	cfg := &config.Config{
		HistoryPath:     historyPath,
		ModelDir:        filepath.Join(t.TempDir(), "models"),
		ForecastURL:     down.URL,
		AirQualityURL:   down.URL,
		TextGenTimeout:  time.Second,
		TextGenWorkers:  1,
		ForecastTTL:     time.Hour,
		ForecastTimeout: time.Second,
		ForecastDays:    3,
		Latitude:        domain.AlmatyCenterLat,
		Longitude:       domain.AlmatyCenterLon,
		Timezone:        "Asia/Almaty",
		LiveEnrich:      true,
		Tunables:        tun,
	}

	a, err := app.New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	deps := Deps{
		Pipeline:   a.Pipeline,
		Models:     a.Models,
		Weather:    a.Weather,
		Forecast:   a.Forecast,
		Logs:       a.Logs,
		Repo:       a.Repo,
		History:    a.History,
		Stats:      a.Stats,
		LiveEnrich: cfg.LiveEnrich,
		Logger:     a.Logger,
	}
	if source != nil {
		deps = source(a)
	}

	server := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	SetupRoutes(server, NewHandler(deps), a.Registry)
	return &fixture{server: server, app: a}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.server.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, 0, nil)

	status, body := f.do(t, fiber.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["model_loaded"])
	assert.Equal(t, false, body["data_loaded"])
	assert.Equal(t, "ok", body["storage"])
}

func TestPredictWithoutHistoryDegrades(t *testing.T) {
	f := newFixture(t, 0, nil)

	status, body := f.do(t, fiber.MethodPost, "/api/v1/predict", `{"date":"2024-07-10","temperature":30}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "2024-07-10", data["target_date"])
	assert.Equal(t, "statistical", data["method"])
	assert.Equal(t, 0.3, data["confidence_score"])
	assert.Equal(t, true, data["is_mock"])
	assert.NotEmpty(t, data["id"])
	assert.NotEmpty(t, data["reasoning"])
}

func TestPredictValidation(t *testing.T) {
	f := newFixture(t, 0, nil)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed", `{"date":`, "Invalid request body"},
		{"query too long", fmt.Sprintf(`{"query":%q}`, strings.Repeat("a", 1001)), "Query too long (max 1000 characters)"},
		{"temperature too low", `{"temperature":-60}`, "Temperature must be between -50 and 55°C"},
		{"live temperature too high", `{"live_temp":70}`, "Temperature must be between -50 and 55°C"},
		{"live aqi", `{"live_aqi":600}`, "Live AQI must be between 0 and 500"},
		{"live traffic", `{"live_traffic":-1}`, "Live traffic must be between 0 and 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, fiber.MethodPost, "/api/v1/predict", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, true, body["error"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestPredictQueryAtLimitAccepted(t *testing.T) {
	f := newFixture(t, 0, nil)

	status, _ := f.do(t, fiber.MethodPost, "/api/v1/predict", fmt.Sprintf(`{"query":%q}`, strings.Repeat("я", 1000)))
	assert.Equal(t, fiber.StatusOK, status)
}

func TestModelInfoUntrained(t *testing.T) {
	f := newFixture(t, 0, nil)

	status, body := f.do(t, fiber.MethodGet, "/api/v1/model/info", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["trained"])
	assert.Equal(t, modelType, body["model_type"])
	assert.Nil(t, body["metrics"])
}

func TestRetrainWithoutData(t *testing.T) {
	f := newFixture(t, 0, nil)

	status, body := f.do(t, fiber.MethodPost, "/api/v1/model/retrain", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "No historical data loaded", body["message"])
}

func TestRetrainWithTooFewRows(t *testing.T) {
	f := newFixture(t, 30, nil)

	status, body := f.do(t, fiber.MethodPost, "/api/v1/model/retrain", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "Not enough historical data to train", body["message"])
}

func TestTrainedModelEndpoints(t *testing.T) {
	f := newFixture(t, 200, nil)
	require.True(t, f.app.Models.Trained())

	status, body := f.do(t, fiber.MethodGet, "/api/v1/model/info", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["trained"])
	assert.NotNil(t, body["feature_importance"])
	assert.NotNil(t, body["seasonal_diagnostics"])
	assert.NotNil(t, body["feature_audit"])

	status, body = f.do(t, fiber.MethodPost, "/api/v1/model/retrain", "")
	require.Equal(t, fiber.StatusOK, status)
	metrics := body["data"].(map[string]any)
	assert.Contains(t, metrics, "pm25")
	assert.Contains(t, metrics, "traffic")

	status, body = f.do(t, fiber.MethodGet, "/api/v1/stats", "")
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Contains(t, data, "summary")
	assert.Contains(t, data, "monthly")
	assert.Contains(t, data, "correlations")

	status, body = f.do(t, fiber.MethodGet, "/health", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["model_loaded"])
	assert.Equal(t, float64(200), body["records"])
}

func TestStatsWithoutData(t *testing.T) {
	f := newFixture(t, 0, nil)

	status, _ := f.do(t, fiber.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}

func TestForecastUnavailable(t *testing.T) {
	f := newFixture(t, 0, nil)

	status, body := f.do(t, fiber.MethodGet, "/api/v1/forecast", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "Forecast unavailable", body["message"])
}

func TestForecastServed(t *testing.T) {
	hi, lo, mean := 1.0, -6.0, -2.4
	fc := &domain.Forecast{
		Daily: []domain.DailyForecast{{Date: "2026-01-16", TempMax: &hi, TempMin: &lo, TempMean: &mean}},
	}
	f := newFixture(t, 0, func(a *app.App) Deps {
		return Deps{
			Pipeline: a.Pipeline,
			Models:   a.Models,
			Forecast: staticForecast{f: fc, status: forecast.StatusStale},
			Logs:     a.Logs,
			History:  a.History,
			Stats:    a.Stats,
			Logger:   a.Logger,
		}
	})

	status, body := f.do(t, fiber.MethodGet, "/api/v1/forecast?lang=en&date=2026-01-16", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "stale", body["status"])
	assert.Contains(t, body["summary"], "2026-01-16")
	assert.Contains(t, body["summary"], "TARGET")

	status, body = f.do(t, fiber.MethodGet, "/api/v1/weather", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "Live weather not configured", body["message"])
}

func TestWeatherFallsBackToMock(t *testing.T) {
	f := newFixture(t, 0, nil)

	status, body := f.do(t, fiber.MethodGet, "/api/v1/weather", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["data"].(map[string]any)["is_mock"])
}

func TestRecentPredictions(t *testing.T) {
	f := newFixture(t, 0, nil)

	for i := 0; i < 3; i++ {
		status, _ := f.do(t, fiber.MethodPost, "/api/v1/predict", `{"date":"2024-07-10"}`)
		require.Equal(t, fiber.StatusOK, status)
	}
	f.app.Logs.WaitBackground()

	status, body := f.do(t, fiber.MethodGet, "/api/v1/predictions?limit=2", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, 0, nil)

	status, _ := f.do(t, fiber.MethodPost, "/api/v1/predict", `{"date":"2024-07-10"}`)
	require.Equal(t, fiber.StatusOK, status)

	resp, err := f.server.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `predictor_predictions_total{degraded="true",method="statistical"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, 0, nil)

	status, body := f.do(t, fiber.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, true, body["error"])
}
