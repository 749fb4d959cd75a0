package baseline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/predictor/internal/domain"
)

func ptr(v float64) *float64 { return &v }

// january returns n January days across consecutive years with AQI
// alternating around 150 and a fixed linear dependence on temperature
func january(n int) []domain.HistoricalRecord {
	records := make([]domain.HistoricalRecord, 0, n)
	for i := 0; i < n; i++ {
		year := 2020 + i/31
		d := time.Date(year, 1, 1+i%31, 0, 0, 0, 0, time.UTC)
		temp := -10.0
		aqi := 130.0
		if i%2 == 1 {
			temp = -6
			aqi = 170
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
			AQI:         aqi,
			PM25:        aqi / 3,
			Congestion:  congestion,
			IsWeekend:   dow >= 5,
			DayOfWeek:   dow,
		})
	}
	return records
}

func TestComputeMonthlyStats(t *testing.T) {
	stats := Compute(january(60))

	ms, ok := stats.Month(1)
	require.True(t, ok)
	assert.Equal(t, 60, ms.Samples)
	assert.Equal(t, 150.0, ms.MeanAQI)
	assert.InDelta(t, 20.2, ms.StdAQI, 0.05)
	assert.Equal(t, 130.0, ms.P25AQI)
	assert.Equal(t, 170.0, ms.P75AQI)
	assert.Equal(t, -8.0, ms.MeanTemperature)
	assert.Equal(t, 30.0, ms.WeekendCongestion)
	assert.Equal(t, 60.0, ms.WeekdayCongestion)

	_, ok = stats.Month(7)
	assert.False(t, ok)
	assert.Equal(t, 60, stats.Overall.Samples)

	corr := stats.Correlations
	assert.InDelta(t, 1.0, corr["temperature"]["aqi"], 1e-9)
	assert.NotContains(t, corr, "pm10")
}

func TestPredictMonthMean(t *testing.T) {
	b := New(Compute(january(60)), DefaultConfig())

	est := b.Predict(1, nil, false)
	assert.Equal(t, 150, est.AQI)
	// 44 weekdays at 60 and 16 weekend days at 30
	assert.Equal(t, 52.0, est.Congestion)
	assert.Equal(t, 0.67, est.Confidence)
	assert.Equal(t, CoverageMonth, est.Coverage)
	assert.False(t, est.TemperatureAdjusted)
	assert.False(t, est.InsufficientData())
}

func TestPredictTemperatureAdjustment(t *testing.T) {
	b := New(Compute(january(60)), DefaultConfig())

	// slope is 10 index points per degree
	est := b.Predict(1, ptr(-7), false)
	assert.True(t, est.TemperatureAdjusted)
	assert.InDelta(t, 10.0, est.Slope, 1e-6)
	assert.Equal(t, 160, est.AQI)
	assert.Equal(t, 0.7, est.Confidence)

	// extreme inputs stay within the index range
	est = b.Predict(1, ptr(60), false)
	assert.Equal(t, 500, est.AQI)
}

func TestPredictWeekendScaling(t *testing.T) {
	b := New(Compute(january(60)), DefaultConfig())

	weekday := b.Predict(1, nil, false)
	weekend := b.Predict(1, nil, true)
	assert.True(t, weekend.WeekendAdjusted)
	assert.InDelta(t, weekday.Congestion/2, weekend.Congestion, 0.05)
}

func TestPredictConfidenceBounds(t *testing.T) {
	cfg := DefaultConfig()

	few := New(Compute(january(4)), cfg).Predict(1, nil, false)
	assert.GreaterOrEqual(t, few.Confidence, cfg.Floor)

	many := New(Compute(january(400)), cfg).Predict(1, ptr(-8), false)
	assert.Equal(t, cfg.Cap, many.Confidence)
}

func TestPredictMissingMonth(t *testing.T) {
	b := New(Compute(january(60)), DefaultConfig())

	est := b.Predict(7, ptr(25), false)
	assert.Equal(t, CoverageOverall, est.Coverage)
	assert.True(t, est.InsufficientData())
	assert.Equal(t, 0.4, est.Confidence)
	assert.Equal(t, 150, est.AQI)
}

func TestPredictNoData(t *testing.T) {
	b := New(Compute(nil), DefaultConfig())

	tests := []struct {
		month      int
		temp       *float64
		aqi        int
		congestion float64
	}{
		{1, ptr(-15), 180, 60},
		{1, ptr(-5), 150, 65},
		{12, nil, 120, 70},
		{7, ptr(33), 40, 45},
		{7, nil, 55, 55},
		{4, nil, 85, 65},
	}
	for _, tt := range tests {
		est := b.Predict(tt.month, tt.temp, false)
		assert.Equal(t, tt.aqi, est.AQI)
		assert.Equal(t, tt.congestion, est.Congestion)
		assert.Equal(t, 0.3, est.Confidence)
		assert.Equal(t, CoverageNone, est.Coverage)
	}
}

func TestSlopeSkippedForConstantTemperature(t *testing.T) {
	records := january(10)
	for i := range records {
		records[i].Temperature = -5
	}
	est := New(Compute(records), DefaultConfig()).Predict(1, ptr(-20), false)
	assert.False(t, est.TemperatureAdjusted)
}
