package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/predictor/internal/aqi"
	"github.com/smartcity/predictor/internal/baseline"
	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/history"
)

func ptr[T any](v T) *T { return &v }

// days returns n consecutive records from start with values growing by day
func days(start time.Time, n int) []domain.HistoricalRecord {
	records := make([]domain.HistoricalRecord, n)
	for i := range records {
		d := start.AddDate(0, 0, i)
		dow := domain.WeekdayIndex(d)
		records[i] = domain.HistoricalRecord{
			Date:          d,
			Temperature:   float64(i),
			Humidity:      50,
			WindSpeed:     3,
			Precipitation: 1,
			PM25:          float64(10 + i),
			AQI:           float64(aqi.FromPM25(float64(10 + i))),
			Congestion:    float64(40 + i),
			Month:         int(d.Month()),
			DayOfWeek:     dow,
			IsWeekend:     dow >= 5,
		}
	}
	return records
}

func newResolver(t *testing.T, records []domain.HistoricalRecord) *Resolver {
	t.Helper()
	store, err := history.NewStore(records)
	require.NoError(t, err)
	r := NewResolver(store, baseline.Compute(store.Records()), time.UTC)
	r.now = func() time.Time { return time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC) }
	return r
}

func TestResolveTemperaturePrecedence(t *testing.T) {
	r := newResolver(t, days(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 20))

	tests := []struct {
		name   string
		req    domain.PredictionRequest
		want   float64
		source domain.ValueSource
	}{
		{
			name:   "live wins",
			req:    domain.PredictionRequest{Temperature: ptr(5.0), LiveTemp: ptr(-3.0)},
			want:   -3,
			source: domain.SourceLive,
		},
		{
			name:   "explicit",
			req:    domain.PredictionRequest{Temperature: ptr(5.0)},
			want:   5,
			source: domain.SourceExplicit,
		},
		{
			name:   "seasonal mean",
			req:    domain.PredictionRequest{},
			want:   9.5,
			source: domain.SourceSeasonal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := r.Resolve(tt.req)
			assert.True(t, ctx.HasTemperature)
			assert.Equal(t, tt.want, ctx.Temperature)
			assert.Equal(t, tt.source, ctx.TemperatureSource)
		})
	}
}

func TestResolveWithoutHistory(t *testing.T) {
	r := newResolver(t, nil)
	ctx := r.Resolve(domain.PredictionRequest{Date: "2024-01-15"})

	assert.False(t, ctx.HasTemperature)
	assert.Equal(t, domain.SourceNone, ctx.TemperatureSource)
	assert.Nil(t, ctx.MeasuredTemperature())
	assert.Equal(t, domain.SourceNone, ctx.LagSource)
	assert.False(t, ctx.LagsKnown)
	assert.Equal(t, defaultPM25Lag, ctx.Lags.PM25Lag1)
	assert.Equal(t, defaultHumidity, ctx.Humidity)
}

func TestResolveDate(t *testing.T) {
	r := newResolver(t, nil)

	ctx := r.Resolve(domain.PredictionRequest{Date: "2024-01-13"})
	assert.Equal(t, "2024-01-13", ctx.TargetDate.Format(domain.DateLayout))
	assert.Equal(t, 1, ctx.Month)
	assert.Equal(t, 5, ctx.DayOfWeek)
	assert.True(t, ctx.IsWeekend)

	ctx = r.Resolve(domain.PredictionRequest{Date: "2024-01-13T08:00:00Z"})
	assert.Equal(t, "2024-01-13", ctx.TargetDate.Format(domain.DateLayout))

	for _, raw := range []string{"", "tomorrow", "2024-13-45"} {
		ctx = r.Resolve(domain.PredictionRequest{Date: raw})
		assert.Equal(t, "2024-03-05", ctx.TargetDate.Format(domain.DateLayout), raw)
		assert.Equal(t, 14, ctx.Now.Hour())
	}
}

func TestResolveLagsFromHistory(t *testing.T) {
	r := newResolver(t, days(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 20))

	// prior day is 2024-03-10 (index 9); window is indexes 3..9
	ctx := r.Resolve(domain.PredictionRequest{Date: "2024-03-11"})

	assert.Equal(t, domain.SourceHistory, ctx.LagSource)
	assert.True(t, ctx.LagsKnown)
	assert.Equal(t, 19.0, ctx.Lags.PM25Lag1)
	assert.Equal(t, 49.0, ctx.Lags.CongestionLag1)
	assert.Equal(t, 9.0, ctx.Lags.TempLag1)
	assert.Equal(t, 16.0, ctx.Lags.PM25Roll7)
	assert.Equal(t, 46.0, ctx.Lags.CongestionRoll7)
	assert.Equal(t, 6.0, ctx.Lags.TempRoll7)
	assert.Equal(t, 50.0, ctx.Humidity)
}

func TestResolveLagsSeasonalWhenPriorDayMissing(t *testing.T) {
	r := newResolver(t, days(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 20))

	ctx := r.Resolve(domain.PredictionRequest{Date: "2025-03-11"})

	assert.Equal(t, domain.SourceSeasonal, ctx.LagSource)
	assert.False(t, ctx.LagsKnown)
	assert.Equal(t, 19.5, ctx.Lags.PM25Lag1)
	assert.Equal(t, 19.5, ctx.Lags.PM25Roll7)
	assert.Equal(t, 49.5, ctx.Lags.CongestionLag1)
}

func TestResolveInterpolatedPriorDay(t *testing.T) {
	records := days(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 10)
	records[9].Interpolated = true
	r := newResolver(t, records)

	ctx := r.Resolve(domain.PredictionRequest{Date: "2024-03-11"})
	assert.Equal(t, domain.SourceHistory, ctx.LagSource)
	assert.False(t, ctx.LagsKnown)
}

func TestResolveLiveReadingsOverrideLags(t *testing.T) {
	r := newResolver(t, days(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 20))

	ctx := r.Resolve(domain.PredictionRequest{
		Date:        "2025-03-11",
		LiveAQI:     ptr(100),
		LiveTraffic: ptr(72.5),
		LiveTemp:    ptr(4.0),
	})

	assert.Equal(t, domain.SourceLive, ctx.LagSource)
	assert.True(t, ctx.LagsKnown)
	assert.True(t, ctx.HasLiveData())
	assert.InDelta(t, aqi.ToPM25(100), ctx.Lags.PM25Lag1, 1e-9)
	assert.Equal(t, 72.5, ctx.Lags.CongestionLag1)
	assert.Equal(t, 4.0, ctx.Lags.TempLag1)
	// rolling terms stay seasonal
	assert.Equal(t, 19.5, ctx.Lags.PM25Roll7)
}

func TestResolveLanguageAndQuery(t *testing.T) {
	r := newResolver(t, nil)

	ctx := r.Resolve(domain.PredictionRequest{Language: "EN-us", Query: "  commute?  "})
	assert.Equal(t, domain.LangEnglish, ctx.Language)
	assert.Equal(t, "commute?", ctx.Query)

	ctx = r.Resolve(domain.PredictionRequest{})
	assert.Equal(t, domain.LangRussian, ctx.Language)
}
