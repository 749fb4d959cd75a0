// Package app builds the service context: every long-lived component,
// constructed once in dependency order and torn down in reverse.
package app

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/smartcity/predictor/internal/baseline"
	"github.com/smartcity/predictor/internal/config"
	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/forecast"
	"github.com/smartcity/predictor/internal/history"
	"github.com/smartcity/predictor/internal/metrics"
	"github.com/smartcity/predictor/internal/ml"
	"github.com/smartcity/predictor/internal/modelstore"
	"github.com/smartcity/predictor/internal/repository/postgres"
	"github.com/smartcity/predictor/internal/repository/sqlite"
	"github.com/smartcity/predictor/internal/service"
	"github.com/smartcity/predictor/internal/textgen"
)

const dbConnectTimeout = 10 * time.Second

// App is the explicitly constructed service context
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Location *time.Location

	History  *history.Store
	Stats    *baseline.Stats
	Baseline *baseline.Baseline
	Models   *service.ModelManager

	Forecast *forecast.Cache
	Weather  *service.WeatherService
	TextGen  *textgen.Pool

	Repo     domain.DataRepository
	Logs     *service.PredictionLogService
	Pipeline *service.Pipeline

	forecastClient *forecast.OpenMeteo
}

// New initializes in order: storage, historical data, statistics, models
// (load or train), forecast client, text generator, pipeline
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("Unknown city timezone, using UTC",
			zap.String("timezone", cfg.Timezone),
			zap.Error(err))
		loc = time.UTC
	}
	a.Location = loc

	a.Repo = a.openRepository(ctx)
	a.Logs = service.NewPredictionLogService(a.Repo, logger)

	a.History = a.loadHistory()
	a.Stats = baseline.Compute(a.History.Records())
	a.Baseline = baseline.New(a.Stats, cfg.Tunables.Baseline)

	a.Models = service.NewModelManager(
		modelstore.New(cfg.ModelDir, logger),
		ml.NewTrainer(cfg.Tunables.Training, logger),
		a.History, logger, a.Metrics)
	if err := a.Models.Init(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("app: failed to initialize models: %w", err)
	}

	a.forecastClient = forecast.NewOpenMeteo(forecast.ClientConfig{
		ForecastURL:   cfg.ForecastURL,
		AirQualityURL: cfg.AirQualityURL,
		Latitude:      cfg.Latitude,
		Longitude:     cfg.Longitude,
		Timezone:      cfg.Timezone,
		Days:          cfg.ForecastDays,
		Timeout:       cfg.ForecastTimeout,
	}, logger, a.Metrics)
	a.Forecast = forecast.NewCache(a.forecastClient, cfg.ForecastTTL, logger, a.Metrics)

	a.Weather = service.NewWeatherService(service.WeatherConfig{
		ForecastURL:   cfg.ForecastURL,
		AirQualityURL: cfg.AirQualityURL,
		Latitude:      cfg.Latitude,
		Longitude:     cfg.Longitude,
		Timezone:      cfg.Timezone,
	}, logger)

	a.TextGen = textgen.NewPool(a.newGenerator(), cfg.TextGenWorkers, cfg.TextGenTimeout, logger, a.Metrics)

	a.Pipeline = service.NewPipeline(service.PipelineDeps{
		Resolver: service.NewResolver(a.History, a.Stats, loc),
		Models:   a.Models,
		Baseline: a.Baseline,
		Forecast: a.Forecast,
		TextGen:  a.TextGen,
		Logs:     a.Logs,
		Blend:    cfg.Tunables.Blend,
		Logger:   logger,
		Metrics:  a.Metrics,
	})

	logger.Info("Service context ready",
		zap.Int("history_records", a.History.Len()),
		zap.Bool("model_trained", a.Models.Trained()),
		zap.Bool("text_generator", a.TextGen.Available()))
	return a, nil
}

// Close waits for background writes, then releases network resources
func (a *App) Close() {
	a.Logs.WaitBackground()
	if a.forecastClient != nil {
		a.forecastClient.Close()
	}
	if a.Weather != nil {
		a.Weather.Close()
	}
	if a.Repo != nil {
		a.Repo.Close()
	}
	_ = a.Logger.Sync()
}

// openRepository prefers PostgreSQL, then SQLite, then the in-memory mock
func (a *App) openRepository(ctx context.Context) domain.DataRepository {
	cfg, logger := a.Config, a.Logger

	if cfg.DatabaseURL != "" {
		repo, err := openPostgres(ctx, cfg.DatabaseURL)
		if err == nil {
			logger.Info("Connected to PostgreSQL")
			return repo
		}
		logger.Warn("Could not connect to database, trying fallbacks", zap.Error(err))
	}

	if cfg.SQLitePath != "" {
		repo, err := sqlite.New(cfg.SQLitePath, logger)
		if err == nil {
			return repo
		}
		logger.Warn("Could not open SQLite database", zap.Error(err))
	}

	logger.Info("Prediction logs kept in memory")
	return postgres.NewMockRepository()
}

func openPostgres(ctx context.Context, dsn string) (*postgres.PostgresRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	repo := postgres.NewPostgresRepository(pool)
	if err := repo.Health(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// loadHistory never fails: a missing or unreadable file yields an empty
// store and every consumer degrades to its no-data behavior
func (a *App) loadHistory() *history.Store {
	store, err := history.LoadCSV(a.Config.HistoryPath, history.LoadOptions{
		InterpolatedBefore: a.Config.HistoryInterpolatedBefore,
	}, a.Logger)
	if err != nil {
		a.Logger.Warn("Historical data unavailable, using seasonal defaults",
			zap.String("path", a.Config.HistoryPath),
			zap.Error(err))
		empty, _ := history.NewStore(nil)
		return empty
	}
	return store
}

func (a *App) newGenerator() textgen.Generator {
	if a.Config.GroqAPIKey == "" {
		a.Logger.Info("GROQ_API_KEY not set, using composed text only")
		return nil
	}
	g, err := textgen.NewGroq(textgen.GroqConfig{
		APIKey:            a.Config.GroqAPIKey,
		Model:             a.Config.GroqModel,
		RequestsPerMinute: a.Config.TextGenRPM,
	}, a.Logger)
	if err != nil {
		a.Logger.Warn("Text generator disabled", zap.Error(err))
		return nil
	}
	return g
}
