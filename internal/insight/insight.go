// Package insight composes the deterministic, localized explanation that
// accompanies every prediction. It is always available, so it also serves as
// the fallback text when no external text generator answers.
package insight

import (
	"fmt"
	"math"
	"strings"

	"github.com/smartcity/predictor/internal/aqi"
	"github.com/smartcity/predictor/internal/domain"
)

// DayPart is the time-of-day bucket of the request
type DayPart string

const (
	Morning DayPart = "morning"
	Day     DayPart = "day"
	Evening DayPart = "evening"
	Night   DayPart = "night"
)

// DayPartOf buckets an hour of the day (0-23)
func DayPartOf(hour int) DayPart {
	switch {
	case hour >= 5 && hour <= 11:
		return Morning
	case hour >= 12 && hour <= 16:
		return Day
	case hour >= 17 && hour <= 21:
		return Evening
	default:
		return Night
	}
}

// Coverage says how much history backed the statistical component
type Coverage int

const (
	CoverageMonth Coverage = iota
	CoverageOverall
	CoverageNone
)

// Input is everything the composer reads
type Input struct {
	Context    domain.PredictionContext
	AQI        int
	Congestion float64

	// ModelWeight is the model share of the blend; zero means baseline only
	ModelWeight float64
	Samples     int
	Coverage    Coverage
	// TemperatureSlope is the baseline's per-degree adjustment, zero if none
	TemperatureSlope float64

	// Forecast is a formatted forecast summary, empty when unavailable
	Forecast string
}

// Output is the composed text
type Output struct {
	Prediction string
	Reasoning  string
}

// Compose renders the prediction and reasoning text in the context language
func Compose(in Input) Output {
	ctx := in.Context
	l := localeFor(ctx.Language)
	season := domain.SeasonOf(ctx.Month)

	prediction := []string{
		fmt.Sprintf(l.heading, ctx.TargetDate.Format(l.dateLayout), l.seasons[season]),
		fmt.Sprintf(l.bands[aqi.CategoryOf(in.AQI)], in.AQI),
		fmt.Sprintf(l.congestion, l.levels[domain.CongestionLevel(in.Congestion)], in.Congestion),
		l.dayParts[DayPartOf(ctx.Now.Hour())],
	}

	reasons := []string{l.seasonWhy[season]}
	if ctx.HasLiveData() {
		reasons = append(reasons, l.liveData)
	} else {
		reasons = append(reasons, l.historyData)
	}
	if !ctx.LagsKnown && in.ModelWeight > 0 {
		reasons = append(reasons, l.lagsEstimated)
	}

	switch {
	case in.ModelWeight > 0:
		model := int(math.Round(in.ModelWeight * 100))
		reasons = append(reasons, fmt.Sprintf(l.blend, model, 100-model))
	case in.Coverage == CoverageNone:
		reasons = append(reasons, l.noHistory)
	case in.Coverage == CoverageOverall:
		reasons = append(reasons, l.noMonthData)
	default:
		reasons = append(reasons, fmt.Sprintf(l.baselineOnly, in.Samples))
	}

	switch {
	case !ctx.HasTemperature:
		reasons = append(reasons, l.tempUnknown)
	case ctx.TemperatureSource == domain.SourceSeasonal:
		reasons = append(reasons, fmt.Sprintf(l.tempSeasonal, ctx.Temperature))
	default:
		reasons = append(reasons, fmt.Sprintf(l.tempMeasured, ctx.Temperature))
	}
	if in.TemperatureSlope != 0 {
		reasons = append(reasons, fmt.Sprintf(l.tempAdjusted, in.TemperatureSlope))
	}

	reasoning := strings.Join(reasons, ". ") + "."
	if in.Forecast != "" {
		reasoning += "\n" + in.Forecast
	}

	return Output{
		Prediction: strings.Join(prediction, "\n"),
		Reasoning:  reasoning,
	}
}
