// Package forecast fetches the short-range weather and air-quality forecast,
// merges it into one payload and caches it for the whole process.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/metrics"
)

// Default Open-Meteo endpoints
const (
	DefaultForecastURL   = "https://api.open-meteo.com/v1/forecast"
	DefaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
)

// Fetcher retrieves a fresh merged forecast
type Fetcher interface {
	Fetch(ctx context.Context) (*domain.Forecast, error)
}

// ClientConfig configures the Open-Meteo client
type ClientConfig struct {
	ForecastURL   string
	AirQualityURL string
	Latitude      float64
	Longitude     float64
	Timezone      string
	Days          int
	Timeout       time.Duration
}

// OpenMeteo fetches forecasts from the free Open-Meteo API (no key needed)
type OpenMeteo struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewOpenMeteo creates a client. Empty URLs fall back to the public endpoints.
func NewOpenMeteo(cfg ClientConfig, logger *zap.Logger, m *metrics.Metrics) *OpenMeteo {
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	if cfg.AirQualityURL == "" {
		cfg.AirQualityURL = DefaultAirQualityURL
	}
	if cfg.Days < 1 || cfg.Days > 3 {
		cfg.Days = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &OpenMeteo{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		metrics:    m,
	}
}

// --- Open-Meteo response structs ---

type weatherResponse struct {
	Daily struct {
		Time          []string   `json:"time"`
		TempMax       []*float64 `json:"temperature_2m_max"`
		TempMin       []*float64 `json:"temperature_2m_min"`
		TempMean      []*float64 `json:"temperature_2m_mean"`
		Precipitation []*float64 `json:"precipitation_sum"`
		WindMax       []*float64 `json:"windspeed_10m_max"`
		WeatherCode   []*int     `json:"weathercode"`
		Humidity      []*float64 `json:"relative_humidity_2m_mean"`
	} `json:"daily"`
	Hourly struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		Humidity      []*float64 `json:"relativehumidity_2m"`
		Precipitation []*float64 `json:"precipitation"`
		WindSpeed     []*float64 `json:"windspeed_10m"`
		WeatherCode   []*int     `json:"weathercode"`
	} `json:"hourly"`
}

type airQualityResponse struct {
	Hourly struct {
		Time  []string   `json:"time"`
		PM25  []*float64 `json:"pm2_5"`
		PM10  []*float64 `json:"pm10"`
		USAQI []*float64 `json:"us_aqi"`
	} `json:"hourly"`
}

// Fetch requests weather and air quality concurrently. Weather is required;
// an air-quality failure is logged and the forecast is merged without it.
func (c *OpenMeteo) Fetch(ctx context.Context) (*domain.Forecast, error) {
	start := time.Now()
	defer func() { c.metrics.ObserveForecastFetch(time.Since(start).Seconds()) }()

	var (
		weather weatherResponse
		air     *airQualityResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.get(gctx, c.weatherURL(), &weather); err != nil {
			c.metrics.RecordForecastFetchError("weather")
			return fmt.Errorf("forecast: failed to fetch weather: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var aq airQualityResponse
		if err := c.get(gctx, c.airQualityURL(), &aq); err != nil {
			c.metrics.RecordForecastFetchError("air_quality")
			c.logger.Warn("Air-quality forecast unavailable, merging weather only", zap.Error(err))
			return nil
		}
		air = &aq
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f := Merge(&weather, air, time.Now())
	c.logger.Info("Fetched forecast",
		zap.Int("days", len(f.Daily)),
		zap.Int("hours", len(f.Hourly)),
		zap.Bool("air_quality", f.HasAirQuality))
	return f, nil
}

func (c *OpenMeteo) weatherURL() string {
	q := c.baseQuery()
	q.Set("daily", "temperature_2m_max,temperature_2m_min,temperature_2m_mean,precipitation_sum,windspeed_10m_max,weathercode,relative_humidity_2m_mean")
	q.Set("hourly", "temperature_2m,relativehumidity_2m,precipitation,windspeed_10m,weathercode")
	return c.cfg.ForecastURL + "?" + q.Encode()
}

func (c *OpenMeteo) airQualityURL() string {
	q := c.baseQuery()
	q.Set("hourly", "pm2_5,pm10,us_aqi")
	return c.cfg.AirQualityURL + "?" + q.Encode()
}

func (c *OpenMeteo) baseQuery() url.Values {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.cfg.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(c.cfg.Longitude, 'f', 4, 64))
	q.Set("timezone", c.cfg.Timezone)
	q.Set("forecast_days", strconv.Itoa(c.cfg.Days))
	return q
}

func (c *OpenMeteo) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// Close releases idle upstream connections
func (c *OpenMeteo) Close() {
	c.httpClient.CloseIdleConnections()
}
