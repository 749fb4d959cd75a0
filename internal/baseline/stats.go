// Package baseline computes per-month statistics over the historical series
// and produces the statistical estimate the models are blended with.
package baseline

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/pkg/utils"
)

// MonthStats aggregates one month-of-year across all years
type MonthStats struct {
	Month   int `json:"month"`
	Samples int `json:"count"`

	MeanAQI float64 `json:"mean_aqi"`
	StdAQI  float64 `json:"std_aqi"`
	P25AQI  float64 `json:"p25_aqi"`
	P75AQI  float64 `json:"p75_aqi"`

	MeanCongestion float64 `json:"mean_traffic"`
	StdCongestion  float64 `json:"std_traffic"`
	// Weekend and weekday congestion means; zero when a group has no samples
	WeekendCongestion float64 `json:"weekend_traffic"`
	WeekdayCongestion float64 `json:"weekday_traffic"`

	MeanTemperature   float64 `json:"mean_temperature"`
	MeanPM25          float64 `json:"mean_pm25"`
	MeanHumidity      float64 `json:"mean_humidity"`
	MeanWindSpeed     float64 `json:"mean_wind_speed"`
	MeanPrecipitation float64 `json:"mean_precipitation"`
}

// Stats holds everything derived from one historical series
type Stats struct {
	Months       map[int]MonthStats            `json:"monthly"`
	Overall      MonthStats                    `json:"overall"`
	Correlations map[string]map[string]float64 `json:"correlations"`

	byMonth map[int][]domain.HistoricalRecord
}

// Compute derives monthly statistics and pairwise correlations. It must be
// called again whenever the underlying series changes.
func Compute(records []domain.HistoricalRecord) *Stats {
	s := &Stats{
		Months:       make(map[int]MonthStats),
		Correlations: make(map[string]map[string]float64),
		byMonth:      make(map[int][]domain.HistoricalRecord),
	}
	if len(records) == 0 {
		return s
	}

	for _, r := range records {
		s.byMonth[r.Month] = append(s.byMonth[r.Month], r)
	}
	for month, rows := range s.byMonth {
		s.Months[month] = aggregate(month, rows)
	}
	s.Overall = aggregate(0, records)
	s.Correlations = correlations(records)
	return s
}

// Month returns the statistics of a month-of-year
func (s *Stats) Month(month int) (MonthStats, bool) {
	if s == nil {
		return MonthStats{}, false
	}
	m, ok := s.Months[month]
	return m, ok && m.Samples > 0
}

// Empty reports whether no records were aggregated
func (s *Stats) Empty() bool {
	return s == nil || s.Overall.Samples == 0
}

// MonthRecords returns the historical rows of a month-of-year
func (s *Stats) MonthRecords(month int) []domain.HistoricalRecord {
	if s == nil {
		return nil
	}
	return s.byMonth[month]
}

func aggregate(month int, rows []domain.HistoricalRecord) MonthStats {
	aqi := column(rows, func(r domain.HistoricalRecord) float64 { return r.AQI })
	congestion := column(rows, func(r domain.HistoricalRecord) float64 { return r.Congestion })

	var weekend, weekday []float64
	for _, r := range rows {
		if r.IsWeekend {
			weekend = append(weekend, r.Congestion)
		} else {
			weekday = append(weekday, r.Congestion)
		}
	}

	sorted := append([]float64(nil), aqi...)
	sort.Float64s(sorted)

	return MonthStats{
		Month:   month,
		Samples: len(rows),

		MeanAQI: round1(stat.Mean(aqi, nil)),
		StdAQI:  round1(stdDev(aqi)),
		P25AQI:  round1(stat.Quantile(0.25, stat.Empirical, sorted, nil)),
		P75AQI:  round1(stat.Quantile(0.75, stat.Empirical, sorted, nil)),

		MeanCongestion:    round1(stat.Mean(congestion, nil)),
		StdCongestion:     round1(stdDev(congestion)),
		WeekendCongestion: round1(meanOrZero(weekend)),
		WeekdayCongestion: round1(meanOrZero(weekday)),

		MeanTemperature:   round1(stat.Mean(column(rows, func(r domain.HistoricalRecord) float64 { return r.Temperature }), nil)),
		MeanPM25:          round1(stat.Mean(column(rows, func(r domain.HistoricalRecord) float64 { return r.PM25 }), nil)),
		MeanHumidity:      round1(stat.Mean(column(rows, func(r domain.HistoricalRecord) float64 { return r.Humidity }), nil)),
		MeanWindSpeed:     round1(stat.Mean(column(rows, func(r domain.HistoricalRecord) float64 { return r.WindSpeed }), nil)),
		MeanPrecipitation: round1(stat.Mean(column(rows, func(r domain.HistoricalRecord) float64 { return r.Precipitation }), nil)),
	}
}

// correlatedColumns are the numeric columns included in the correlation
// matrix when every record carries them
var correlatedColumns = []struct {
	name  string
	value func(domain.HistoricalRecord) (float64, bool)
}{
	{"temperature", func(r domain.HistoricalRecord) (float64, bool) { return r.Temperature, true }},
	{"aqi", func(r domain.HistoricalRecord) (float64, bool) { return r.AQI, true }},
	{"traffic_index", func(r domain.HistoricalRecord) (float64, bool) { return r.Congestion, true }},
	{"humidity", func(r domain.HistoricalRecord) (float64, bool) { return r.Humidity, true }},
	{"wind_speed", func(r domain.HistoricalRecord) (float64, bool) { return r.WindSpeed, true }},
	{"pm10", optional(func(r domain.HistoricalRecord) *float64 { return r.PM10 })},
	{"no2", optional(func(r domain.HistoricalRecord) *float64 { return r.NO2 })},
	{"so2", optional(func(r domain.HistoricalRecord) *float64 { return r.SO2 })},
	{"ozone", optional(func(r domain.HistoricalRecord) *float64 { return r.Ozone })},
}

func optional(field func(domain.HistoricalRecord) *float64) func(domain.HistoricalRecord) (float64, bool) {
	return func(r domain.HistoricalRecord) (float64, bool) {
		v := field(r)
		if v == nil {
			return 0, false
		}
		return *v, true
	}
}

func correlations(records []domain.HistoricalRecord) map[string]map[string]float64 {
	if len(records) < 2 {
		return map[string]map[string]float64{}
	}

	names := make([]string, 0, len(correlatedColumns))
	values := make(map[string][]float64)
	for _, c := range correlatedColumns {
		col := make([]float64, 0, len(records))
		complete := true
		for _, r := range records {
			v, ok := c.value(r)
			if !ok {
				complete = false
				break
			}
			col = append(col, v)
		}
		if complete {
			names = append(names, c.name)
			values[c.name] = col
		}
	}

	out := make(map[string]map[string]float64, len(names))
	for _, a := range names {
		out[a] = make(map[string]float64, len(names))
		for _, b := range names {
			r := stat.Correlation(values[a], values[b], nil)
			if !utils.IsFinite(r) {
				r = 0
			}
			out[a][b] = utils.RoundTo(r, 3)
		}
	}
	return out
}

func column(rows []domain.HistoricalRecord, field func(domain.HistoricalRecord) float64) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = field(r)
	}
	return out
}

func stdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.StdDev(x, nil)
}

func meanOrZero(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

func round1(v float64) float64 {
	if !utils.IsFinite(v) {
		return 0
	}
	return utils.RoundTo(v, 1)
}
