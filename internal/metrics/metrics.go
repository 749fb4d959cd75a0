// Package metrics provides Prometheus instrumentation for the predictor.
//
// Metrics exposed:
//   - predictor_predictions_total: Counter of predictions by method and degraded flag
//   - predictor_prediction_duration_seconds: Histogram of prediction latency
//   - predictor_forecast_cache_requests_total: Counter of forecast cache reads by status
//   - predictor_forecast_fetch_errors_total: Counter of upstream fetch errors by source
//   - predictor_forecast_fetch_duration_seconds: Histogram of forecast refresh latency
//   - predictor_textgen_requests_total: Counter of text generation outcomes
//   - predictor_training_duration_seconds: Histogram of training runs
//   - predictor_model_trained: Gauge, 1 when a trained model is being served
//
// All recording methods are safe on a nil *Metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PredictionsTotal      *prometheus.CounterVec
	PredictionDuration    prometheus.Histogram
	ForecastCacheRequests *prometheus.CounterVec
	ForecastFetchErrors   *prometheus.CounterVec
	ForecastFetchDuration prometheus.Histogram
	TextGenRequests       *prometheus.CounterVec
	TrainingDuration      prometheus.Histogram
	ModelTrained          prometheus.Gauge
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		PredictionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_predictions_total",
			Help: "Total number of predictions by method and degraded flag",
		}, []string{"method", "degraded"}),

		PredictionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "predictor_prediction_duration_seconds",
			Help:    "Duration of prediction requests",
			Buckets: prometheus.DefBuckets,
		}),

		ForecastCacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_forecast_cache_requests_total",
			Help: "Forecast cache reads by returned status",
		}, []string{"status"}),

		ForecastFetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_forecast_fetch_errors_total",
			Help: "Errors fetching forecasts by upstream source",
		}, []string{"source"}),

		ForecastFetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "predictor_forecast_fetch_duration_seconds",
			Help:    "Duration of forecast refreshes",
			Buckets: prometheus.DefBuckets,
		}),

		TextGenRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_textgen_requests_total",
			Help: "Text generation requests by outcome",
		}, []string{"outcome"}),

		TrainingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "predictor_training_duration_seconds",
			Help:    "Duration of model training runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),

		ModelTrained: f.NewGauge(prometheus.GaugeOpts{
			Name: "predictor_model_trained",
			Help: "1 when a trained model is served, 0 when running on the baseline only",
		}),
	}
}

func (m *Metrics) RecordPrediction(method string, degraded bool, seconds float64) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(method, strconv.FormatBool(degraded)).Inc()
	m.PredictionDuration.Observe(seconds)
}

func (m *Metrics) RecordForecastRequest(status string) {
	if m == nil {
		return
	}
	m.ForecastCacheRequests.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordForecastFetchError(source string) {
	if m == nil {
		return
	}
	m.ForecastFetchErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveForecastFetch(seconds float64) {
	if m == nil {
		return
	}
	m.ForecastFetchDuration.Observe(seconds)
}

func (m *Metrics) RecordTextGen(outcome string) {
	if m == nil {
		return
	}
	m.TextGenRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTraining(seconds float64) {
	if m == nil {
		return
	}
	m.TrainingDuration.Observe(seconds)
}

func (m *Metrics) SetModelTrained(trained bool) {
	if m == nil {
		return
	}
	if trained {
		m.ModelTrained.Set(1)
	} else {
		m.ModelTrained.Set(0)
	}
}
