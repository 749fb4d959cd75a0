package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smartcity/predictor/internal/aqi"
	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/forecast"
	"github.com/smartcity/predictor/pkg/utils"
)

// WeatherConfig locates the live weather endpoints
type WeatherConfig struct {
	ForecastURL   string
	AirQualityURL string
	Latitude      float64
	Longitude     float64
	Timezone      string
	Timeout       time.Duration
	CacheTTL      time.Duration
}

// WeatherService fetches current weather + AQI from Open-Meteo (free, no API key)
type WeatherService struct {
	cfg        WeatherConfig
	httpClient *http.Client
	logger     *zap.Logger
	location   *time.Location
	now        func() time.Time

	// Cache to avoid excessive API calls
	mu          sync.RWMutex
	cachedData  *domain.Weather
	cacheExpiry time.Time
}

// NewWeatherService creates a live weather service
func NewWeatherService(cfg WeatherConfig, logger *zap.Logger) *WeatherService {
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = forecast.DefaultForecastURL
	}
	if cfg.AirQualityURL == "" {
		cfg.AirQualityURL = forecast.DefaultAirQualityURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute // Open-Meteo updates every 15 min
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &WeatherService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		location:   loc,
		now:        time.Now,
	}
}

type currentWeatherResponse struct {
	Current struct {
		Time               string  `json:"time"`
		Temperature2m      float64 `json:"temperature_2m"`
		RelativeHumidity2m int     `json:"relative_humidity_2m"`
		ApparentTemp       float64 `json:"apparent_temperature"`
		WeatherCode        int     `json:"weather_code"`
		WindSpeed10m       float64 `json:"wind_speed_10m"`
		SurfacePressure    float64 `json:"surface_pressure"`
	} `json:"current"`
}

type currentAirQualityResponse struct {
	Current struct {
		Time string   `json:"time"`
		PM25 *float64 `json:"pm2_5"`
	} `json:"current"`
}

// GetCurrentWeather returns live readings, or seasonal mock readings marked
// IsMock when the provider cannot be reached. It never fails.
func (s *WeatherService) GetCurrentWeather(ctx context.Context) domain.Weather {
	s.mu.RLock()
	if s.cachedData != nil && s.now().Before(s.cacheExpiry) {
		cached := *s.cachedData
		s.mu.RUnlock()
		return cached
	}
	s.mu.RUnlock()

	weather, err := s.fetchWeather(ctx)
	if err != nil {
		s.logger.Warn("Open-Meteo weather error, using fallback", zap.Error(err))
		return s.getMockWeather()
	}

	if pm25, err := s.fetchPM25(ctx); err == nil {
		weather.PM25 = &pm25
		weather.AQI = aqi.FromPM25(pm25)
	} else {
		s.logger.Warn("Open-Meteo AQI error, estimating", zap.Error(err))
		weather.AQI = estimateAQI(weather.Temperature, weather.Timestamp.Month())
	}

	s.mu.Lock()
	s.cachedData = &weather
	s.cacheExpiry = s.now().Add(s.cfg.CacheTTL)
	s.mu.Unlock()

	s.logger.Info("Live weather refreshed",
		zap.Float64("temperature", weather.Temperature),
		zap.Int("humidity", weather.Humidity),
		zap.Int("aqi", weather.AQI),
		zap.String("description", weather.Description))

	return weather
}

// Enrich fills the live readings a request lacks from real (non-mock)
// weather. Only requests for today in the city are touched, and an explicit
// temperature is never overridden by the current one.
func (s *WeatherService) Enrich(ctx context.Context, req domain.PredictionRequest) domain.PredictionRequest {
	if !s.targetsToday(req.Date) {
		return req
	}
	needTemp := req.LiveTemp == nil && req.Temperature == nil
	if !needTemp && req.LiveAQI != nil {
		return req
	}
	w := s.GetCurrentWeather(ctx)
	if w.IsMock {
		return req
	}
	if needTemp {
		t := w.Temperature
		req.LiveTemp = &t
	}
	if req.LiveAQI == nil && w.PM25 != nil {
		a := w.AQI
		req.LiveAQI = &a
	}
	return req
}

// targetsToday reports whether a request date resolves to the current city
// day; an empty or unparseable date means today
func (s *WeatherService) targetsToday(raw string) bool {
	raw = strings.TrimSpace(raw)
	if len(raw) < len(domain.DateLayout) {
		return true
	}
	target, err := time.ParseInLocation(domain.DateLayout, raw[:len(domain.DateLayout)], s.location)
	if err != nil {
		return true
	}
	return target.Format(domain.DateLayout) == s.now().In(s.location).Format(domain.DateLayout)
}

func (s *WeatherService) fetchWeather(ctx context.Context) (domain.Weather, error) {
	q := s.query()
	q.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,weather_code,wind_speed_10m,surface_pressure")

	var resp currentWeatherResponse
	if err := s.get(ctx, s.cfg.ForecastURL+"?"+q.Encode(), &resp); err != nil {
		return domain.Weather{}, fmt.Errorf("open-meteo: %w", err)
	}

	c := resp.Current
	code := c.WeatherCode
	return domain.Weather{
		Temperature: utils.RoundTo(c.Temperature2m, 1),
		FeelsLike:   utils.RoundTo(c.ApparentTemp, 1),
		Humidity:    c.RelativeHumidity2m,
		Description: forecast.WeatherText(&code, domain.LangEnglish),
		Icon:        wmoIcon(code),
		WindSpeed:   utils.RoundTo(c.WindSpeed10m/3.6, 1), // km/h → m/s
		Pressure:    int(utils.RoundTo(c.SurfacePressure, 0)),
		City:        "Almaty",
		Country:     "KZ",
		Timestamp:   s.now(),
		IsMock:      false,
	}, nil
}

func (s *WeatherService) fetchPM25(ctx context.Context) (float64, error) {
	q := s.query()
	q.Set("current", "pm2_5")

	var resp currentAirQualityResponse
	if err := s.get(ctx, s.cfg.AirQualityURL+"?"+q.Encode(), &resp); err != nil {
		return 0, fmt.Errorf("air-quality: %w", err)
	}
	if resp.Current.PM25 == nil {
		return 0, fmt.Errorf("air-quality: PM2.5 is null")
	}
	return *resp.Current.PM25, nil
}

func (s *WeatherService) query() url.Values {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(s.cfg.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(s.cfg.Longitude, 'f', 4, 64))
	if s.cfg.Timezone != "" {
		q.Set("timezone", s.cfg.Timezone)
	}
	return q
}

func (s *WeatherService) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
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

// Close releases idle connections
func (s *WeatherService) Close() {
	s.httpClient.CloseIdleConnections()
}

// estimateAQI guesses the index from temperature when the air-quality
// endpoint fails. Winter cold means coal heating smog.
func estimateAQI(temp float64, month time.Month) int {
	isWinter := month == 12 || month == 1 || month == 2

	switch {
	case isWinter && temp < -10:
		return 180
	case isWinter && temp < 0:
		return 150
	case temp > 25:
		return 50
	}
	return 80
}

func wmoIcon(code int) string {
	switch {
	case code == 0:
		return "01d"
	case code <= 3:
		return "02d"
	case code == 45 || code == 48:
		return "50d"
	case code >= 51 && code <= 57, code >= 80 && code <= 82:
		return "09d"
	case code >= 61 && code <= 67:
		return "10d"
	case code >= 71 && code <= 77, code >= 85 && code <= 86:
		return "13d"
	case code >= 95:
		return "11d"
	default:
		return "04d"
	}
}

// getMockWeather returns simulated Almaty weather
func (s *WeatherService) getMockWeather() domain.Weather {
	now := s.now()
	var temp, feelsLike float64
	var description string
	var index int

	switch domain.SeasonOf(int(now.Month())) {
	case domain.SeasonWinter:
		temp, feelsLike, description, index = -8.0, -15.0, "Light snow", 165
	case domain.SeasonSpring:
		temp, feelsLike, description, index = 12.0, 10.0, "Partly cloudy", 75
	case domain.SeasonSummer:
		temp, feelsLike, description, index = 28.0, 30.0, "Clear sky", 45
	default:
		temp, feelsLike, description, index = 8.0, 5.0, "Overcast clouds", 90
	}

	return domain.Weather{
		Temperature: temp,
		FeelsLike:   feelsLike,
		Humidity:    65,
		Description: description,
		Icon:        "04d",
		WindSpeed:   3.5,
		Pressure:    1015,
		AQI:         index,
		City:        "Almaty",
		Country:     "KZ",
		Timestamp:   now,
		IsMock:      true,
	}
}
