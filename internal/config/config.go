// Package config loads process configuration from the environment (and an
// optional .env file) plus an optional YAML file of model tunables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/smartcity/predictor/internal/baseline"
	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/ensemble"
	"github.com/smartcity/predictor/internal/ml"
)

// Config holds process settings
type Config struct {
	Port string
	Env  string

	LogLevel  string
	LogFormat string

	DatabaseURL string
	SQLitePath  string

	HistoryPath               string
	HistoryInterpolatedBefore time.Time
	ModelDir                  string

	GroqAPIKey     string
	GroqModel      string
	TextGenTimeout time.Duration
	TextGenWorkers int
	TextGenRPM     int

	ForecastURL     string
	AirQualityURL   string
	ForecastTTL     time.Duration
	ForecastTimeout time.Duration
	ForecastDays    int

	Latitude  float64
	Longitude float64
	Timezone  string

	LiveEnrich bool

	TunablesPath string
	Tunables     Tunables

	// EnvFileLoaded is false when no .env file was found
	EnvFileLoaded bool
}

// Tunables are the model constants that may be overridden from YAML
type Tunables struct {
	Blend    ensemble.Config `yaml:"blend"`
	Baseline baseline.Config `yaml:"baseline"`
	Training ml.TrainConfig  `yaml:"training"`
}

// DefaultTunables returns the documented constants
func DefaultTunables() Tunables {
	return Tunables{
		Blend:    ensemble.DefaultConfig(),
		Baseline: baseline.DefaultConfig(),
		Training: ml.DefaultTrainConfig(),
	}
}

// IsProduction reports whether GO_ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env (if present), the environment and the tunables file
func Load() (*Config, error) {
	envErr := godotenv.Load()

	p := &parser{}
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("GO_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		SQLitePath:      getEnv("SQLITE_PATH", ""),
		HistoryPath:     getEnv("HISTORY_PATH", "data/almaty_history.csv"),
		ModelDir:        getEnv("MODEL_DIR", "models"),
		GroqAPIKey:      getEnv("GROQ_API_KEY", ""),
		GroqModel:       getEnv("GROQ_MODEL", "llama-3.1-8b-instant"),
		TextGenTimeout:  p.durationVar("TEXTGEN_TIMEOUT", 15*time.Second),
		TextGenWorkers:  p.intVar("TEXTGEN_WORKERS", 4),
		TextGenRPM:      p.intVar("TEXTGEN_RPM", 30),
		ForecastURL:     getEnv("OPEN_METEO_FORECAST_URL", ""),
		AirQualityURL:   getEnv("OPEN_METEO_AIR_QUALITY_URL", ""),
		ForecastTTL:     p.durationVar("FORECAST_TTL", time.Hour),
		ForecastTimeout: p.durationVar("FORECAST_TIMEOUT", 10*time.Second),
		ForecastDays:    p.intVar("FORECAST_DAYS", 3),
		Latitude:        p.floatVar("CITY_LAT", domain.AlmatyCenterLat),
		Longitude:       p.floatVar("CITY_LON", domain.AlmatyCenterLon),
		Timezone:        getEnv("CITY_TIMEZONE", "Asia/Almaty"),
		LiveEnrich:      p.boolVar("LIVE_ENRICH", true),
		TunablesPath:    getEnv("TUNABLES_PATH", ""),
		Tunables:        DefaultTunables(),
		EnvFileLoaded:   envErr == nil,
	}
	cfg.HistoryInterpolatedBefore = p.dateVar("HISTORY_INTERPOLATED_BEFORE")

	if cfg.ForecastDays < 1 || cfg.ForecastDays > 3 {
		p.errs = append(p.errs, fmt.Errorf("FORECAST_DAYS must be 1-3, got %d", cfg.ForecastDays))
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("config: invalid environment: %w", err)
	}

	if cfg.TunablesPath != "" {
		if err := LoadTunables(cfg.TunablesPath, &cfg.Tunables); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadTunables decodes a YAML file over t; keys absent from the file keep
// their current values
func LoadTunables(path string, t *Tunables) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: failed to open tunables file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(t); err != nil {
		return fmt.Errorf("config: failed to decode tunables file: %w", err)
	}
	return t.Validate()
}

// Validate rejects tunables no component can work with
func (t Tunables) Validate() error {
	var errs []error
	if t.Blend.ModelWeight < 0 || t.Blend.ModelWeight > 1 {
		errs = append(errs, fmt.Errorf("blend.model_weight must be within [0,1], got %v", t.Blend.ModelWeight))
	}
	if t.Blend.ConfidenceCap <= 0 || t.Blend.ConfidenceCap > 1 {
		errs = append(errs, fmt.Errorf("blend.confidence_cap must be within (0,1], got %v", t.Blend.ConfidenceCap))
	}
	if t.Baseline.Floor > t.Baseline.Cap {
		errs = append(errs, fmt.Errorf("baseline.floor %v exceeds baseline.cap %v", t.Baseline.Floor, t.Baseline.Cap))
	}
	if t.Training.TestFraction <= 0 || t.Training.TestFraction >= 1 {
		errs = append(errs, fmt.Errorf("training.test_fraction must be within (0,1), got %v", t.Training.TestFraction))
	}
	if t.Training.Folds < 2 {
		errs = append(errs, fmt.Errorf("training.folds must be at least 2, got %d", t.Training.Folds))
	}
	if t.Training.Boosting.Estimators < 1 || t.Training.Forest.Estimators < 1 {
		errs = append(errs, errors.New("training estimators must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid tunables: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser reads typed variables and collects every malformed one
type parser struct {
	errs []error
}

func (p *parser) intVar(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) floatVar(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) boolVar(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) durationVar(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) dateVar(key string) time.Time {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Time{}
	}
	v, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return time.Time{}
	}
	return v
}
