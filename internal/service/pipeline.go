package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartcity/predictor/internal/baseline"
	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/ensemble"
	"github.com/smartcity/predictor/internal/features"
	"github.com/smartcity/predictor/internal/forecast"
	"github.com/smartcity/predictor/internal/insight"
	"github.com/smartcity/predictor/internal/metrics"
	"github.com/smartcity/predictor/internal/textgen"
	"github.com/smartcity/predictor/pkg/utils"
)

// Degradation reasons reported with a response
const (
	DegradedBaselineOnly  = "baseline_only"
	DegradedForecastStale = "forecast_stale"
	DegradedNoForecast    = "forecast_unavailable"
	DegradedTextPrefix    = "textgen_"
)

// ForecastSource is the read side of the forecast cache
type ForecastSource interface {
	Get(ctx context.Context) (*domain.Forecast, forecast.Status)
}

// Pipeline produces one prediction per request. Per-request failures of
// collaborators are absorbed and reported as degradations.
type Pipeline struct {
	resolver *Resolver
	models   *ModelManager
	baseline *baseline.Baseline
	forecast ForecastSource
	textgen  *textgen.Pool
	logs     *PredictionLogService
	blend    ensemble.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// PipelineDeps are the collaborators of a Pipeline. Forecast, TextGen and
// Logs may be nil.
type PipelineDeps struct {
	Resolver *Resolver
	Models   *ModelManager
	Baseline *baseline.Baseline
	Forecast ForecastSource
	TextGen  *textgen.Pool
	Logs     *PredictionLogService
	Blend    ensemble.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// NewPipeline wires a pipeline
func NewPipeline(d PipelineDeps) *Pipeline {
	return &Pipeline{
		resolver: d.Resolver,
		models:   d.Models,
		baseline: d.Baseline,
		forecast: d.Forecast,
		textgen:  d.TextGen,
		logs:     d.Logs,
		blend:    d.Blend,
		logger:   d.Logger,
		metrics:  d.Metrics,
	}
}

// Predict never fails: every missing input or collaborator degrades the
// result instead
func (p *Pipeline) Predict(ctx context.Context, req domain.PredictionRequest) domain.PredictionResponse {
	start := time.Now()
	pctx := p.resolver.Resolve(req)
	targetDate := pctx.TargetDate.Format(domain.DateLayout)

	est := p.baseline.Predict(pctx.Month, pctx.MeasuredTemperature(), pctx.IsWeekend)
	modelOut, pm25 := p.modelComponent(pctx)
	result := ensemble.Blend(modelOut, ensemble.Component{
		AQI:        est.AQI,
		Congestion: est.Congestion,
		Confidence: est.Confidence,
	}, p.blend)

	var degradations []string
	if result.Fallback {
		degradations = append(degradations, DegradedBaselineOnly)
	}

	summary, status := p.forecastSummary(ctx, targetDate, pctx.Language)
	switch status {
	case forecast.StatusStale:
		degradations = append(degradations, DegradedForecastStale)
	case forecast.StatusUnavailable:
		degradations = append(degradations, DegradedNoForecast)
	}

	composed := insight.Compose(insight.Input{
		Context:          pctx,
		AQI:              result.AQI,
		Congestion:       result.Congestion,
		ModelWeight:      p.modelWeight(result),
		Samples:          est.Samples,
		Coverage:         coverageOf(est),
		TemperatureSlope: est.Slope,
		Forecast:         summary,
	})

	text := composed.Prediction
	if pctx.Query != "" {
		gen := p.textgen.Generate(ctx, textgen.Request{
			Language:    pctx.Language,
			TargetDate:  targetDate,
			Season:      domain.SeasonOf(pctx.Month),
			Temperature: temperaturePtr(pctx),
			AQI:         result.AQI,
			Congestion:  result.Congestion,
			Query:       pctx.Query,
			Forecast:    summary,
		})
		if gen.OK() {
			text = gen.Text
		} else {
			degradations = append(degradations, DegradedTextPrefix+string(gen.Failure))
		}
	}

	resp := domain.PredictionResponse{
		ID:               uuid.NewString(),
		TargetDate:       targetDate,
		Prediction:       text,
		ConfidenceScore:  utils.RoundTo(result.Confidence, 2),
		AQIPrediction:    result.AQI,
		TrafficIndex:     result.Congestion,
		PM25Prediction:   pm25,
		Reasoning:        composed.Reasoning,
		Method:           result.Method,
		LagFeaturesKnown: pctx.LagsKnown,
		Degradations:     degradations,
		IsMock:           len(degradations) > 0,
	}

	p.metrics.RecordPrediction(resp.Method, resp.IsMock, time.Since(start).Seconds())
	p.logger.Debug("Prediction served",
		zap.String("id", resp.ID),
		zap.String("target_date", targetDate),
		zap.String("method", resp.Method),
		zap.Int("aqi", resp.AQIPrediction),
		zap.Float64("traffic", resp.TrafficIndex),
		zap.Strings("degradations", degradations))

	p.logs.Record(req, resp)
	return resp
}

// modelComponent runs the trained model when it and a temperature are available
func (p *Pipeline) modelComponent(pctx domain.PredictionContext) (*ensemble.Component, *float64) {
	model := p.models.Current()
	if model == nil || !pctx.HasTemperature {
		return nil, nil
	}
	pred, err := model.Predict(features.FromContext(pctx))
	if err != nil {
		p.logger.Warn("Model inference failed, using baseline", zap.Error(err))
		return nil, nil
	}
	pm25 := pred.PM25
	return &ensemble.Component{
		AQI:        pred.AQI,
		Congestion: pred.Congestion,
		Confidence: model.Confidence(pctx.Month, pctx.LagsKnown),
	}, &pm25
}

func (p *Pipeline) forecastSummary(ctx context.Context, targetDate string, lang domain.Language) (string, forecast.Status) {
	if p.forecast == nil {
		return "", forecast.StatusFresh
	}
	f, status := p.forecast.Get(ctx)
	if f == nil {
		return "", status
	}
	return forecast.Format(f, targetDate, lang), status
}

func (p *Pipeline) modelWeight(r ensemble.Result) float64 {
	if r.Fallback {
		return 0
	}
	return utils.Clamp(p.blend.ModelWeight, 0, 1)
}

// temperaturePtr is nil when no temperature could be resolved
func temperaturePtr(pctx domain.PredictionContext) *float64 {
	if !pctx.HasTemperature {
		return nil
	}
	t := pctx.Temperature
	return &t
}

func coverageOf(est baseline.Estimate) insight.Coverage {
	switch {
	case !est.InsufficientData():
		return insight.CoverageMonth
	case est.Coverage == baseline.CoverageOverall:
		return insight.CoverageOverall
	default:
		return insight.CoverageNone
	}
}
