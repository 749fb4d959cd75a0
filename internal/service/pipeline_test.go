package service

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smartcity/predictor/internal/baseline"
	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/ensemble"
	"github.com/smartcity/predictor/internal/forecast"
	"github.com/smartcity/predictor/internal/history"
	"github.com/smartcity/predictor/internal/insight"
	"github.com/smartcity/predictor/internal/ml"
	"github.com/smartcity/predictor/internal/modelstore"
	"github.com/smartcity/predictor/internal/textgen"
)

type memoryRepo struct {
	mu   sync.Mutex
	logs []domain.PredictionLog
	err  error
}

func (r *memoryRepo) SavePredictionLog(_ context.Context, entry domain.PredictionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.logs = append(r.logs, entry)
	return nil
}

func (r *memoryRepo) RecentPredictions(_ context.Context, limit int) ([]domain.PredictionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.logs) {
		limit = len(r.logs)
	}
	return r.logs[:limit], nil
}

func (r *memoryRepo) Health(context.Context) error { return nil }
func (r *memoryRepo) Close()                       {}

type staticForecast struct {
	f      *domain.Forecast
	status forecast.Status
}

func (s staticForecast) Get(context.Context) (*domain.Forecast, forecast.Status) {
	return s.f, s.status
}

type genFunc func(ctx context.Context, req textgen.Request) (string, error)

func (f genFunc) Generate(ctx context.Context, req textgen.Request) (string, error) {
	return f(ctx, req)
}

// januaryHistory is 60 January days averaging AQI 150 with std ~20
func januaryHistory() []domain.HistoricalRecord {
	records := make([]domain.HistoricalRecord, 0, 60)
	for i := 0; i < 60; i++ {
		d := time.Date(2020+i/31, 1, 1+i%31, 0, 0, 0, 0, time.UTC)
		temp, index := -10.0, 130.0
		if i%2 == 1 {
			temp, index = -6, 170
		}
		dow := domain.WeekdayIndex(d)
		congestion := 60.0
		if dow >= 5 {
			congestion = 30
		}
		records = append(records, domain.HistoricalRecord{
			Date:        d,
			Month:       1,
			Temperature: temp,
			Humidity:    70,
			AQI:         index,
			PM25:        index / 3,
			Congestion:  congestion,
			DayOfWeek:   dow,
			IsWeekend:   dow >= 5,
		})
	}
	return records
}

// seasonalHistory is a smooth autocorrelated series long enough to train on
func seasonalHistory(n int) []domain.HistoricalRecord {
	rng := rand.New(rand.NewSource(11))
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]domain.HistoricalRecord, n)
	pm25 := 40.0
	for i := range records {
		d := start.AddDate(0, 0, i)
		temp := 15 - 15*math.Cos(2*math.Pi*float64(d.YearDay())/365) + rng.NormFloat64()
		pm25 = math.Max(2, 0.6*pm25+0.8*math.Max(0, 10-temp)+8+rng.NormFloat64()*3)
		dow := domain.WeekdayIndex(d)
		congestion := 55.0
		if dow >= 5 {
			congestion = 30
		}
		records[i] = domain.HistoricalRecord{
			Date:        d,
			Temperature: temp,
			Humidity:    60,
			WindSpeed:   2 + rng.Float64(),
			PM25:        pm25,
			AQI:         pm25 * 3,
			Congestion:  congestion + rng.NormFloat64(),
			Month:       int(d.Month()),
			DayOfWeek:   dow,
			IsWeekend:   dow >= 5,
		}
	}
	return records
}

func smallTrainConfig() ml.TrainConfig {
	cfg := ml.DefaultTrainConfig()
	cfg.Boosting.Estimators = 40
	cfg.Forest.Estimators = 12
	return cfg
}

type pipelineFixture struct {
	pipeline *Pipeline
	models   *ModelManager
	logs     *PredictionLogService
	repo     *memoryRepo
}

func newPipeline(t *testing.T, records []domain.HistoricalRecord, fc ForecastSource, gen textgen.Generator) pipelineFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store, err := history.NewStore(records)
	require.NoError(t, err)
	stats := baseline.Compute(store.Records())

	models := NewModelManager(
		modelstore.New(t.TempDir(), logger),
		ml.NewTrainer(smallTrainConfig(), logger),
		store, logger, nil)

	repo := &memoryRepo{}
	logs := NewPredictionLogService(repo, logger)

	p := NewPipeline(PipelineDeps{
		Resolver: NewResolver(store, stats, time.UTC),
		Models:   models,
		Baseline: baseline.New(stats, baseline.DefaultConfig()),
		Forecast: fc,
		TextGen:  textgen.NewPool(gen, 2, time.Second, logger, nil),
		Logs:     logs,
		Blend:    ensemble.DefaultConfig(),
		Logger:   logger,
	})
	return pipelineFixture{pipeline: p, models: models, logs: logs, repo: repo}
}

func TestPredictStatisticalFallback(t *testing.T) {
	fx := newPipeline(t, januaryHistory(), nil, nil)

	resp := fx.pipeline.Predict(context.Background(), domain.PredictionRequest{Date: "2021-01-20"})

	assert.Equal(t, ensemble.MethodStatistical, resp.Method)
	assert.Equal(t, 150, resp.AQIPrediction)
	assert.Equal(t, 52.0, resp.TrafficIndex)
	assert.Equal(t, 0.67, resp.ConfidenceScore)
	assert.True(t, resp.IsMock)
	assert.Equal(t, []string{DegradedBaselineOnly}, resp.Degradations)
	assert.Nil(t, resp.PM25Prediction)
	assert.Equal(t, "2021-01-20", resp.TargetDate)
	assert.NotEmpty(t, resp.ID)
	assert.NotEmpty(t, resp.Prediction)
	assert.NotEmpty(t, resp.Reasoning)

	fx.logs.WaitBackground()
	require.Len(t, fx.repo.logs, 1)
	assert.Equal(t, resp.ID, fx.repo.logs[0].ID)
	assert.True(t, fx.repo.logs[0].IsMock)
}

func TestPredictWithoutHistory(t *testing.T) {
	fx := newPipeline(t, nil, nil, nil)

	resp := fx.pipeline.Predict(context.Background(), domain.PredictionRequest{
		Date:        "2024-01-10",
		Temperature: ptr(-12.0),
	})

	assert.Equal(t, ensemble.MethodStatistical, resp.Method)
	assert.Equal(t, 180, resp.AQIPrediction)
	assert.Equal(t, 0.3, resp.ConfidenceScore)
	assert.True(t, resp.IsMock)
}

func TestPredictTextGeneration(t *testing.T) {
	t.Run("generated text replaces composed text", func(t *testing.T) {
		var got textgen.Request
		fx := newPipeline(t, januaryHistory(), nil, genFunc(func(_ context.Context, req textgen.Request) (string, error) {
			got = req
			return "Take the metro.", nil
		}))

		resp := fx.pipeline.Predict(context.Background(), domain.PredictionRequest{
			Date:     "2021-01-20",
			Query:    "How is my commute?",
			Language: "en",
		})

		assert.Equal(t, "Take the metro.", resp.Prediction)
		assert.Equal(t, []string{DegradedBaselineOnly}, resp.Degradations)
		assert.Equal(t, domain.LangEnglish, got.Language)
		assert.Equal(t, 150, got.AQI)
		assert.Equal(t, "How is my commute?", got.Query)
		assert.Equal(t, domain.SeasonWinter, got.Season)
	})

	t.Run("failure falls back to composed text", func(t *testing.T) {
		fx := newPipeline(t, januaryHistory(), nil, genFunc(func(context.Context, textgen.Request) (string, error) {
			return "", errors.New("upstream down")
		}))

		withQuery := fx.pipeline.Predict(context.Background(), domain.PredictionRequest{Date: "2021-01-20", Query: "commute?"})
		plain := fx.pipeline.Predict(context.Background(), domain.PredictionRequest{Date: "2021-01-20"})

		assert.Equal(t, plain.Prediction, withQuery.Prediction)
		assert.Contains(t, withQuery.Degradations, DegradedTextPrefix+string(textgen.FailureUpstream))
		assert.True(t, withQuery.IsMock)
	})

	t.Run("no query skips the generator", func(t *testing.T) {
		called := false
		fx := newPipeline(t, januaryHistory(), nil, genFunc(func(context.Context, textgen.Request) (string, error) {
			called = true
			return "x", nil
		}))

		fx.pipeline.Predict(context.Background(), domain.PredictionRequest{Date: "2021-01-20"})
		assert.False(t, called)
	})
}

func TestPredictForecastStatus(t *testing.T) {
	mean := -5.0
	f := &domain.Forecast{Daily: []domain.DailyForecast{{Date: "2021-01-20", TempMean: &mean}}}

	tests := []struct {
		name   string
		source ForecastSource
		want   string
	}{
		{name: "stale", source: staticForecast{f: f, status: forecast.StatusStale}, want: DegradedForecastStale},
		{name: "unavailable", source: staticForecast{status: forecast.StatusUnavailable}, want: DegradedNoForecast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newPipeline(t, januaryHistory(), tt.source, nil)
			resp := fx.pipeline.Predict(context.Background(), domain.PredictionRequest{Date: "2021-01-20"})
			assert.Contains(t, resp.Degradations, tt.want)
		})
	}

	fx := newPipeline(t, januaryHistory(), staticForecast{f: f, status: forecast.StatusFresh}, nil)
	resp := fx.pipeline.Predict(context.Background(), domain.PredictionRequest{Date: "2021-01-20"})
	assert.Equal(t, []string{DegradedBaselineOnly}, resp.Degradations)
	assert.Contains(t, resp.Reasoning, "2021-01-20")
}

func TestPredictEnsembleWithTrainedModel(t *testing.T) {
	fx := newPipeline(t, seasonalHistory(400), nil, nil)
	_, err := fx.models.Retrain(context.Background())
	require.NoError(t, err)

	resp := fx.pipeline.Predict(context.Background(), domain.PredictionRequest{Date: "2023-02-05"})

	assert.Equal(t, ensemble.MethodEnsemble, resp.Method)
	assert.False(t, resp.IsMock)
	assert.Empty(t, resp.Degradations)
	require.NotNil(t, resp.PM25Prediction)
	assert.True(t, resp.LagFeaturesKnown)
	assert.GreaterOrEqual(t, resp.ConfidenceScore, 0.4)
	assert.LessOrEqual(t, resp.ConfidenceScore, 0.95)
	assert.GreaterOrEqual(t, resp.AQIPrediction, 0)
	assert.LessOrEqual(t, resp.AQIPrediction, 500)
	assert.GreaterOrEqual(t, resp.TrafficIndex, 0.0)
	assert.LessOrEqual(t, resp.TrafficIndex, 100.0)
}

func TestPredictionLogFailureDoesNotAffectResponse(t *testing.T) {
	fx := newPipeline(t, januaryHistory(), nil, nil)
	fx.repo.err = errors.New("disk full")

	resp := fx.pipeline.Predict(context.Background(), domain.PredictionRequest{Date: "2021-01-20"})
	fx.logs.WaitBackground()

	assert.Equal(t, 150, resp.AQIPrediction)
	assert.Empty(t, fx.repo.logs)
}

func TestRecentPredictionsLimit(t *testing.T) {
	fx := newPipeline(t, januaryHistory(), nil, nil)
	for i := 0; i < 3; i++ {
		fx.pipeline.Predict(context.Background(), domain.PredictionRequest{Date: "2021-01-20"})
	}
	fx.logs.WaitBackground()

	logs, err := fx.logs.Recent(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = fx.logs.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	var disabled *PredictionLogService
	logs, err = disabled.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestCoverageOf(t *testing.T) {
	tests := []struct {
		coverage baseline.Coverage
		want     insight.Coverage
	}{
		{baseline.CoverageMonth, insight.CoverageMonth},
		{baseline.CoverageOverall, insight.CoverageOverall},
		{baseline.CoverageNone, insight.CoverageNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, coverageOf(baseline.Estimate{Coverage: tt.coverage}), string(tt.coverage))
	}
}
