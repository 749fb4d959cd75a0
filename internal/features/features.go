// Package features derives the model feature schema from the historical
// series (training) and from a resolved prediction context (inference).
//
// Lag and rolling features for row i only ever read rows before i: the
// series is shifted by one day before the rolling window is applied.
package features

import (
	"math"
	"time"

	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/pkg/utils"
)

// Column positions of the feature vector
const (
	Temperature = iota
	Humidity
	WindSpeed
	Precipitation
	Month
	DayOfWeek
	IsWeekend
	TempSquared
	TempWind
	IsWinter
	IsSummer
	IsHeatingSeason
	PM25Lag1
	CongestionLag1
	TempLag1
	PM25Roll7
	CongestionRoll7
	TempRoll7

	Count
)

// RollingWindow is the number of prior days averaged by rolling features
const RollingWindow = 7

// Names lists the feature columns in vector order
var Names = [Count]string{
	"temperature", "humidity", "wind_speed", "precipitation",
	"month", "day_of_week", "is_weekend",
	"temp_squared", "temp_wind_interaction",
	"is_winter", "is_summer", "is_heating_season",
	"pm25_lag1", "traffic_lag1", "temp_lag1",
	"pm25_rolling7", "traffic_rolling7", "temp_rolling7",
}

// IsLag reports whether column i is a lag or rolling feature
func IsLag(i int) bool {
	return i >= PM25Lag1 && i <= TempRoll7
}

// IsMeteorological reports whether column i is a raw or engineered weather term
func IsMeteorological(i int) bool {
	switch i {
	case Temperature, Humidity, WindSpeed, Precipitation, TempSquared, TempWind:
		return true
	}
	return false
}

// Vector is one fixed-order feature tuple
type Vector [Count]float64

// Slice returns the vector as a slice sharing no memory with v
func (v Vector) Slice() []float64 {
	out := make([]float64, Count)
	copy(out, v[:])
	return out
}

// Row is one training example
type Row struct {
	Date     time.Time
	Month    int
	Features Vector
	PM25     float64
	// Congestion is the congestion index target
	Congestion float64

	Interpolated      bool
	CongestionImputed bool
	// Complete is false when lag features are undefined (first row of the series)
	Complete bool
}

// Frame is the engineered training table in date order
type Frame struct {
	Rows []Row
}

// Build engineers features for every record. records must be date-ascending,
// as returned by the historical store.
func Build(records []domain.HistoricalRecord) *Frame {
	rows := make([]Row, len(records))

	for i, r := range records {
		row := Row{
			Date:              r.Date,
			Month:             r.Month,
			PM25:              r.PM25,
			Congestion:        r.Congestion,
			Interpolated:      r.Interpolated,
			CongestionImputed: r.CongestionImputed,
			Complete:          i > 0,
		}
		base(&row.Features, r.Temperature, r.Humidity, r.WindSpeed, r.Precipitation,
			r.Month, r.DayOfWeek, r.IsWeekend)

		if i > 0 {
			prev := records[i-1]
			row.Features[PM25Lag1] = prev.PM25
			row.Features[CongestionLag1] = prev.Congestion
			row.Features[TempLag1] = prev.Temperature

			// window [i-7, i-1], shorter at the start of the series
			from := i - RollingWindow
			if from < 0 {
				from = 0
			}
			window := records[from:i]
			row.Features[PM25Roll7] = mean(window, func(h domain.HistoricalRecord) float64 { return h.PM25 })
			row.Features[CongestionRoll7] = mean(window, func(h domain.HistoricalRecord) float64 { return h.Congestion })
			row.Features[TempRoll7] = mean(window, func(h domain.HistoricalRecord) float64 { return h.Temperature })
		} else {
			for c := PM25Lag1; c <= TempRoll7; c++ {
				row.Features[c] = math.NaN()
			}
		}

		rows[i] = row
	}

	return &Frame{Rows: rows}
}

// PollutantRows returns rows usable for the pollutant model: lags defined and
// the concentration target measured rather than back-filled
func (f *Frame) PollutantRows() []Row {
	var out []Row
	for _, r := range f.Rows {
		if r.Complete && !r.Interpolated {
			out = append(out, r)
		}
	}
	return out
}

// CongestionRows returns rows usable for the congestion model
func (f *Frame) CongestionRows() []Row {
	var out []Row
	for _, r := range f.Rows {
		if r.Complete && !r.CongestionImputed {
			out = append(out, r)
		}
	}
	return out
}

// Complete counts rows with defined lag features
func (f *Frame) Complete() int {
	n := 0
	for _, r := range f.Rows {
		if r.Complete {
			n++
		}
	}
	return n
}

// Matrix splits rows into a feature matrix and the chosen target
func Matrix(rows []Row, target func(Row) float64) ([][]float64, []float64) {
	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		X[i] = r.Features.Slice()
		y[i] = target(r)
	}
	return X, y
}

// PM25Target selects the concentration target
func PM25Target(r Row) float64 { return r.PM25 }

// CongestionTarget selects the congestion target
func CongestionTarget(r Row) float64 { return r.Congestion }

// Inference input bounds applied before a vector reaches the models
const (
	minTemperature, maxTemperature     = -50.0, 60.0
	minHumidity, maxHumidity           = 0.0, 100.0
	minWind, maxWind                   = 0.0, 80.0
	minPrecipitation, maxPrecipitation = 0.0, 300.0
	maxPM25Lag                         = 600.0
	maxCongestionLag                   = 100.0
)

// FromContext builds the inference vector for a resolved prediction context.
// Inputs are clamped to the ranges the models were trained on.
func FromContext(ctx domain.PredictionContext) Vector {
	var v Vector

	month := utils.ClampInt(ctx.Month, 1, 12)
	dow := utils.ClampInt(ctx.DayOfWeek, 0, 6)
	temp := utils.Clamp(ctx.Temperature, minTemperature, maxTemperature)

	base(&v,
		temp,
		utils.Clamp(ctx.Humidity, minHumidity, maxHumidity),
		utils.Clamp(ctx.WindSpeed, minWind, maxWind),
		utils.Clamp(ctx.Precipitation, minPrecipitation, maxPrecipitation),
		month, dow, ctx.IsWeekend)

	lags := ctx.Lags
	v[PM25Lag1] = utils.Clamp(lags.PM25Lag1, 0, maxPM25Lag)
	v[CongestionLag1] = utils.Clamp(lags.CongestionLag1, 0, maxCongestionLag)
	v[TempLag1] = utils.Clamp(lags.TempLag1, minTemperature, maxTemperature)
	v[PM25Roll7] = utils.Clamp(lags.PM25Roll7, 0, maxPM25Lag)
	v[CongestionRoll7] = utils.Clamp(lags.CongestionRoll7, 0, maxCongestionLag)
	v[TempRoll7] = utils.Clamp(lags.TempRoll7, minTemperature, maxTemperature)

	return v
}

func base(v *Vector, temp, humidity, wind, precip float64, month, dow int, weekend bool) {
	v[Temperature] = temp
	v[Humidity] = humidity
	v[WindSpeed] = wind
	v[Precipitation] = precip
	v[Month] = float64(month)
	v[DayOfWeek] = float64(dow)
	v[IsWeekend] = boolFloat(weekend)
	v[TempSquared] = temp * temp
	v[TempWind] = temp * wind

	season := domain.SeasonOf(month)
	v[IsWinter] = boolFloat(season == domain.SeasonWinter)
	v[IsSummer] = boolFloat(season == domain.SeasonSummer)
	v[IsHeatingSeason] = boolFloat(domain.IsHeatingSeason(month))
}

func mean(records []domain.HistoricalRecord, field func(domain.HistoricalRecord) float64) float64 {
	if len(records) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, r := range records {
		sum += field(r)
	}
	return sum / float64(len(records))
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
