package baseline

import (
	"github.com/sajari/regression"

	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/pkg/utils"
)

// Config holds the confidence constants of the statistical estimate
type Config struct {
	Base             float64 `yaml:"base"`
	PerSample        float64 `yaml:"per_sample"`
	Floor            float64 `yaml:"floor"`
	Cap              float64 `yaml:"cap"`
	TemperatureBonus float64 `yaml:"temperature_bonus"`
	NoMonth          float64 `yaml:"no_month"`
	NoData           float64 `yaml:"no_data"`
}

// DefaultConfig returns the documented confidence constants
func DefaultConfig() Config {
	return Config{
		Base:             0.55,
		PerSample:        0.002,
		Floor:            0.50,
		Cap:              0.95,
		TemperatureBonus: 0.03,
		NoMonth:          0.40,
		NoData:           0.30,
	}
}

// Coverage says how much history backed an estimate
type Coverage string

const (
	// CoverageMonth means the month-of-year had samples
	CoverageMonth Coverage = "month"
	// CoverageOverall means the month had none and overall means were used
	CoverageOverall Coverage = "overall"
	// CoverageNone means no history is loaded; fixed seasonal defaults were used
	CoverageNone Coverage = "none"
)

// Estimate is the statistical prediction for one day
type Estimate struct {
	AQI        int
	Congestion float64
	Confidence float64
	Samples    int
	Coverage   Coverage
	// TemperatureAdjusted is true when an OLS slope shifted the monthly mean
	TemperatureAdjusted bool
	Slope               float64
	WeekendAdjusted     bool
}

// InsufficientData reports whether the estimate lacks month-specific history
func (e Estimate) InsufficientData() bool {
	return e.Coverage != CoverageMonth
}

// Baseline predicts from monthly statistics
type Baseline struct {
	stats *Stats
	cfg   Config
}

// New creates a baseline over precomputed statistics
func New(stats *Stats, cfg Config) *Baseline {
	return &Baseline{stats: stats, cfg: cfg}
}

// Predict estimates the index and congestion for a month. temperature is a
// measured or caller-supplied value; seasonal estimates must not be passed.
func (b *Baseline) Predict(month int, temperature *float64, weekend bool) Estimate {
	if b.stats.Empty() {
		return b.defaults(month, temperature)
	}

	ms, ok := b.stats.Month(month)
	if !ok {
		o := b.stats.Overall
		return Estimate{
			AQI:        clampIndex(o.MeanAQI),
			Congestion: clampCongestion(o.MeanCongestion),
			Confidence: b.cfg.NoMonth,
			Samples:    o.Samples,
			Coverage:   CoverageOverall,
		}
	}

	est := Estimate{
		Samples:  ms.Samples,
		Coverage: CoverageMonth,
	}

	index := ms.MeanAQI
	if temperature != nil {
		if slope, ok := temperatureSlope(b.stats.MonthRecords(month)); ok {
			index += slope * (*temperature - ms.MeanTemperature)
			est.Slope = utils.RoundTo(slope, 3)
			est.TemperatureAdjusted = true
		}
	}

	congestion := ms.MeanCongestion
	if weekend && ms.WeekendCongestion > 0 && ms.WeekdayCongestion > 0 {
		congestion *= ms.WeekendCongestion / ms.WeekdayCongestion
		est.WeekendAdjusted = true
	}

	confidence := utils.Clamp(b.cfg.Base+b.cfg.PerSample*float64(ms.Samples), b.cfg.Floor, b.cfg.Cap)
	if est.TemperatureAdjusted {
		confidence = utils.Clamp(confidence+b.cfg.TemperatureBonus, b.cfg.Floor, b.cfg.Cap)
	}

	est.AQI = clampIndex(index)
	est.Congestion = clampCongestion(congestion)
	est.Confidence = utils.RoundTo(confidence, 3)
	return est
}

// defaults are fixed seasonal guesses used when no history is loaded
func (b *Baseline) defaults(month int, temperature *float64) Estimate {
	est := Estimate{Confidence: b.cfg.NoData, Coverage: CoverageNone}

	switch domain.SeasonOf(month) {
	case domain.SeasonWinter:
		switch {
		case temperature != nil && *temperature < -10:
			est.AQI, est.Congestion = 180, 60
		case temperature != nil && *temperature < 0:
			est.AQI, est.Congestion = 150, 65
		default:
			est.AQI, est.Congestion = 120, 70
		}
	case domain.SeasonSummer:
		if temperature != nil && *temperature > 30 {
			est.AQI, est.Congestion = 40, 45
		} else {
			est.AQI, est.Congestion = 55, 55
		}
	default:
		est.AQI, est.Congestion = 85, 65
	}
	return est
}

// temperatureSlope fits index ~ temperature over one month's rows by OLS.
// It is recomputed per call so it always reflects the current series.
func temperatureSlope(rows []domain.HistoricalRecord) (float64, bool) {
	if len(rows) < 3 {
		return 0, false
	}
	lo, hi := rows[0].Temperature, rows[0].Temperature
	for _, row := range rows {
		lo, hi = min(lo, row.Temperature), max(hi, row.Temperature)
	}
	if hi-lo < 1e-9 {
		return 0, false
	}

	var r regression.Regression
	r.SetObserved("aqi")
	r.SetVar(0, "temperature")
	for _, row := range rows {
		r.Train(regression.DataPoint(row.AQI, []float64{row.Temperature}))
	}
	if err := r.Run(); err != nil {
		return 0, false
	}

	coeffs := r.GetCoeffs()
	if len(coeffs) < 2 || !utils.IsFinite(coeffs[1]) {
		return 0, false
	}
	return coeffs[1], true
}

func clampIndex(v float64) int {
	return int(utils.Clamp(utils.RoundTo(v, 0), 0, 500))
}

func clampCongestion(v float64) float64 {
	return utils.RoundTo(utils.Clamp(v, 0, 100), 1)
}
