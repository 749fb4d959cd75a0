package service

import (
	"strings"
	"time"

	"github.com/smartcity/predictor/internal/aqi"
	"github.com/smartcity/predictor/internal/baseline"
	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/features"
	"github.com/smartcity/predictor/internal/history"
)

// Fallback inputs when no history is loaded
const (
	defaultHumidity      = 60.0
	defaultWindSpeed     = 8.0
	defaultPrecipitation = 0.0
	defaultPM25Lag       = 25.0
	defaultCongestionLag = 45.0
	defaultTempLag       = 0.0
)

// Resolver turns a raw request into a fully populated PredictionContext.
// Every precedence rule for optional inputs lives here.
type Resolver struct {
	store    *history.Store
	stats    *baseline.Stats
	location *time.Location
	now      func() time.Time
}

// NewResolver creates a resolver; loc is the city time zone used for "today"
func NewResolver(store *history.Store, stats *baseline.Stats, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{
		store:    store,
		stats:    stats,
		location: loc,
		now:      time.Now,
	}
}

// Resolve applies input precedence:
// temperature live > explicit > seasonal mean,
// lags live > history > seasonal mean.
// An unparseable date silently means today.
func (r *Resolver) Resolve(req domain.PredictionRequest) domain.PredictionContext {
	now := r.now().In(r.location)
	target := r.targetDate(req.Date, now)
	month := int(target.Month())
	dow := domain.WeekdayIndex(target)

	ctx := domain.PredictionContext{
		Now:             now,
		TargetDate:      target,
		Month:           month,
		DayOfWeek:       dow,
		IsWeekend:       dow >= 5,
		LiveAQI:         req.LiveAQI,
		LiveCongestion:  req.LiveTraffic,
		LiveTemperature: req.LiveTemp,
		Query:           strings.TrimSpace(req.Query),
		Language:        domain.ParseLanguage(req.Language),
	}

	seasonal, hasSeasonal := r.seasonal(month)
	r.resolveTemperature(&ctx, req, seasonal, hasSeasonal)
	r.resolveWeather(&ctx, seasonal, hasSeasonal)
	r.resolveLags(&ctx, seasonal, hasSeasonal)
	return ctx
}

func (r *Resolver) targetDate(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if len(raw) >= len(domain.DateLayout) {
		if t, err := time.ParseInLocation(domain.DateLayout, raw[:len(domain.DateLayout)], r.location); err == nil {
			return t
		}
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.location)
}

// seasonal returns the month statistics, or the overall ones when the month
// has no samples
func (r *Resolver) seasonal(month int) (baseline.MonthStats, bool) {
	if ms, ok := r.stats.Month(month); ok {
		return ms, true
	}
	if !r.stats.Empty() {
		return r.stats.Overall, true
	}
	return baseline.MonthStats{}, false
}

func (r *Resolver) resolveTemperature(ctx *domain.PredictionContext, req domain.PredictionRequest, seasonal baseline.MonthStats, ok bool) {
	switch {
	case req.LiveTemp != nil:
		ctx.Temperature, ctx.TemperatureSource = *req.LiveTemp, domain.SourceLive
	case req.Temperature != nil:
		ctx.Temperature, ctx.TemperatureSource = *req.Temperature, domain.SourceExplicit
	case ok:
		ctx.Temperature, ctx.TemperatureSource = seasonal.MeanTemperature, domain.SourceSeasonal
	default:
		ctx.TemperatureSource = domain.SourceNone
		return
	}
	ctx.HasTemperature = true
}

func (r *Resolver) resolveWeather(ctx *domain.PredictionContext, seasonal baseline.MonthStats, ok bool) {
	if !ok {
		ctx.Humidity = defaultHumidity
		ctx.WindSpeed = defaultWindSpeed
		ctx.Precipitation = defaultPrecipitation
		return
	}
	ctx.Humidity = seasonal.MeanHumidity
	ctx.WindSpeed = seasonal.MeanWindSpeed
	ctx.Precipitation = seasonal.MeanPrecipitation
}

func (r *Resolver) resolveLags(ctx *domain.PredictionContext, seasonal baseline.MonthStats, ok bool) {
	window := r.store.Before(ctx.TargetDate, features.RollingWindow)
	prior := ctx.TargetDate.AddDate(0, 0, -1)

	switch {
	case len(window) > 0 && sameDay(window[len(window)-1].Date, prior):
		last := window[len(window)-1]
		ctx.Lags = domain.LagValues{
			PM25Lag1:        last.PM25,
			CongestionLag1:  last.Congestion,
			TempLag1:        last.Temperature,
			PM25Roll7:       meanOf(window, func(h domain.HistoricalRecord) float64 { return h.PM25 }),
			CongestionRoll7: meanOf(window, func(h domain.HistoricalRecord) float64 { return h.Congestion }),
			TempRoll7:       meanOf(window, func(h domain.HistoricalRecord) float64 { return h.Temperature }),
		}
		ctx.LagSource = domain.SourceHistory
		ctx.LagsKnown = !last.Interpolated
	case ok:
		ctx.Lags = domain.LagValues{
			PM25Lag1:        seasonal.MeanPM25,
			CongestionLag1:  seasonal.MeanCongestion,
			TempLag1:        seasonal.MeanTemperature,
			PM25Roll7:       seasonal.MeanPM25,
			CongestionRoll7: seasonal.MeanCongestion,
			TempRoll7:       seasonal.MeanTemperature,
		}
		ctx.LagSource = domain.SourceSeasonal
	default:
		ctx.Lags = domain.LagValues{
			PM25Lag1:        defaultPM25Lag,
			CongestionLag1:  defaultCongestionLag,
			TempLag1:        defaultTempLag,
			PM25Roll7:       defaultPM25Lag,
			CongestionRoll7: defaultCongestionLag,
			TempRoll7:       defaultTempLag,
		}
		ctx.LagSource = domain.SourceNone
	}

	// the latest reading stands in for the prior day
	if ctx.LiveAQI != nil {
		ctx.Lags.PM25Lag1 = aqi.ToPM25(float64(*ctx.LiveAQI))
		ctx.LagSource = domain.SourceLive
		ctx.LagsKnown = true
	}
	if ctx.LiveCongestion != nil {
		ctx.Lags.CongestionLag1 = *ctx.LiveCongestion
	}
	if ctx.LiveTemperature != nil {
		ctx.Lags.TempLag1 = *ctx.LiveTemperature
	}
}

func meanOf(records []domain.HistoricalRecord, field func(domain.HistoricalRecord) float64) float64 {
	sum := 0.0
	for _, r := range records {
		sum += field(r)
	}
	return sum / float64(len(records))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
