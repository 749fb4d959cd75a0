// Package ensemble blends the trained model output with the statistical
// baseline using fixed weights.
package ensemble

import (
	"math"

	"github.com/smartcity/predictor/pkg/utils"
)

// Method names reported with a result
const (
	MethodEnsemble    = "ensemble"
	MethodStatistical = "statistical"
)

// Config holds the blend constants
type Config struct {
	ModelWeight   float64 `yaml:"model_weight"`
	ConfidenceCap float64 `yaml:"confidence_cap"`
}

// DefaultConfig returns the documented 0.70/0.30 blend with a 0.95 cap
func DefaultConfig() Config {
	return Config{ModelWeight: 0.70, ConfidenceCap: 0.95}
}

// Component is one predictor's output
type Component struct {
	AQI        int
	Congestion float64
	Confidence float64
}

// Result is the blended prediction
type Result struct {
	AQI        int
	Congestion float64
	Confidence float64
	Method     string
	// Fallback is true when only the baseline contributed
	Fallback bool
}

// Blend combines model and baseline outputs. A nil model degrades to the
// baseline alone. Outputs are clamped to their valid ranges.
func Blend(model *Component, baseline Component, cfg Config) Result {
	capped := math.Min(cfg.ConfidenceCap, 1)

	if model == nil {
		return Result{
			AQI:        utils.ClampInt(baseline.AQI, 0, 500),
			Congestion: utils.RoundTo(utils.Clamp(baseline.Congestion, 0, 100), 1),
			Confidence: utils.Clamp(math.Min(baseline.Confidence, capped), 0, 1),
			Method:     MethodStatistical,
			Fallback:   true,
		}
	}

	w := utils.Clamp(cfg.ModelWeight, 0, 1)
	index := w*float64(model.AQI) + (1-w)*float64(baseline.AQI)
	congestion := w*model.Congestion + (1-w)*baseline.Congestion
	confidence := math.Min(math.Max(model.Confidence, baseline.Confidence), capped)

	return Result{
		AQI:        int(utils.Clamp(math.Round(index), 0, 500)),
		Congestion: utils.RoundTo(utils.Clamp(congestion, 0, 100), 1),
		Confidence: utils.Clamp(confidence, 0, 1),
		Method:     MethodEnsemble,
	}
}
