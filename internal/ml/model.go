// Package ml trains and serves the pollutant and congestion regressors.
//
// The pollutant model predicts PM2.5 concentration with gradient boosting;
// the index is always derived from that concentration, never predicted.
// The congestion model is a random forest over the same feature schema.
package ml

import (
	"errors"
	"time"

	"github.com/smartcity/predictor/internal/aqi"
	"github.com/smartcity/predictor/internal/features"
	"github.com/smartcity/predictor/pkg/utils"
)

var (
	// ErrNotTrained is returned when inference runs before a model is available
	ErrNotTrained = errors.New("ml: model not trained")
	// ErrInsufficientData is returned when training has too few usable rows
	ErrInsufficientData = errors.New("ml: insufficient data")
)

// Output bounds
const (
	MaxPM25       = 500.0
	MaxCongestion = 100.0
)

// TargetMetrics summarizes held-out and cross-validated accuracy for one target
type TargetMetrics struct {
	MAE          float64   `json:"mae"`
	R2           float64   `json:"r2"`
	TestSamples  int       `json:"test_samples,omitempty"`
	TrainSamples int       `json:"train_samples,omitempty"`
	CVR2Mean     float64   `json:"cv_r2_mean"`
	CVR2Std      float64   `json:"cv_r2_std"`
	CVR2Folds    []float64 `json:"cv_r2_folds,omitempty"`
}

// SeasonMetrics is the held-out pollutant error within one season
type SeasonMetrics struct {
	Samples    int     `json:"samples"`
	PM25MAE    float64 `json:"pm25_mae"`
	MeanActual float64 `json:"pm25_mean_actual"`
}

// SeasonalDiagnostics breaks held-out pollutant error down by season
type SeasonalDiagnostics struct {
	Seasons        map[string]SeasonMetrics `json:"seasons"`
	ImbalanceRatio float64                  `json:"imbalance_ratio,omitempty"`
	Imbalanced     bool                     `json:"imbalanced"`
}

// FeatureAudit splits pollutant-model importance into feature groups
type FeatureAudit struct {
	LagPct      float64 `json:"lag_importance_pct"`
	MeteoPct    float64 `json:"meteo_importance_pct"`
	CalendarPct float64 `json:"calendar_importance_pct"`
	// LagDominated marks a model that degrades without measured lag inputs
	LagDominated bool `json:"lag_dominated"`
}

// Metrics is the full diagnostics blob persisted with a model
type Metrics struct {
	PM25       TargetMetrics `json:"pm25"`
	AQIDerived TargetMetrics `json:"aqi_derived"`
	Congestion TargetMetrics `json:"traffic"`

	FeatureNames      []string                      `json:"feature_names"`
	FeatureImportance map[string]map[string]float64 `json:"feature_importance"`
	Seasonal          SeasonalDiagnostics           `json:"seasonal_diagnostics"`
	Audit             FeatureAudit                  `json:"feature_audit"`

	CVMethod         string    `json:"cv_method"`
	InterpolatedRows int       `json:"interpolated_rows_excluded"`
	TrainedAt        time.Time `json:"trained_at"`
}

// Model is an immutable trained artifact set
type Model struct {
	Pollutant  *GradientBoosting
	Congestion *RandomForest
	Scaler     *Scaler
	Metrics    Metrics
}

// Prediction is the raw model output for one feature vector
type Prediction struct {
	PM25       float64
	AQI        int
	Congestion float64
}

// Predict scales v, runs both regressors and clamps the outputs
func (m *Model) Predict(v features.Vector) (Prediction, error) {
	if m == nil || m.Pollutant == nil || m.Congestion == nil || m.Scaler == nil {
		return Prediction{}, ErrNotTrained
	}

	x := m.Scaler.Transform(v.Slice())
	pm25 := clampOutput(m.Pollutant.Predict(x), MaxPM25)
	congestion := clampOutput(m.Congestion.Predict(x), MaxCongestion)

	return Prediction{
		PM25:       utils.RoundTo(pm25, 1),
		AQI:        aqi.FromPM25(pm25),
		Congestion: utils.RoundTo(congestion, 1),
	}, nil
}

// Confidence estimation constants
const (
	confidenceBase      = 0.75
	confidenceR2Step    = 0.05
	confidenceMonthBump = 0.03
	confidenceLagCost   = 0.10
	confidenceMin       = 0.40
	confidenceMax       = 0.95
)

// Confidence estimates how far the model output can be trusted for a month,
// given whether lag inputs were measured or estimated
func (m *Model) Confidence(month int, lagsKnown bool) float64 {
	c := confidenceBase
	if m.Metrics.PM25.R2 > 0.5 {
		c += confidenceR2Step
	}
	if m.Metrics.PM25.R2 > 0.65 {
		c += confidenceR2Step
	}
	if m.Metrics.Congestion.R2 > 0.5 {
		c += confidenceR2Step
	}
	// best covered months in the training history
	switch month {
	case 1, 2, 7, 8, 12:
		c += confidenceMonthBump
	}
	if !lagsKnown {
		c -= confidenceLagCost
	}
	return utils.RoundTo(utils.Clamp(c, confidenceMin, confidenceMax), 2)
}

func clampOutput(v, max float64) float64 {
	if !utils.IsFinite(v) {
		return 0
	}
	return utils.Clamp(v, 0, max)
}
