// Package aqi converts PM2.5 concentrations to the US EPA Air Quality Index.
//
// The same breakpoint table serves training-time label derivation and
// inference-time conversion.
package aqi

import (
	"math"

	"github.com/smartcity/predictor/pkg/utils"
)

// Breakpoint is one bracket of the piecewise-linear conversion
type Breakpoint struct {
	ConcLow, ConcHigh   float64
	IndexLow, IndexHigh float64
}

// Breakpoints are the February 2024 revised PM2.5 breakpoints (88 FR 5558).
// "Good" ends at 9.0 µg/m³, "Very Unhealthy" at 125.4 µg/m³.
var Breakpoints = []Breakpoint{
	{0.0, 9.0, 0, 50},
	{9.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 125.4, 151, 200},
	{125.5, 225.4, 201, 300},
	{225.5, 325.4, 301, 400},
	{325.5, 500.4, 401, 500},
}

// MaxIndex is the top of the scale
const MaxIndex = 500

// FromPM25 converts a PM2.5 concentration (µg/m³) to an AQI value.
// Values inside the 0.1 µg/m³ gaps between brackets use the upper bracket.
func FromPM25(pm25 float64) int {
	if math.IsNaN(pm25) || pm25 <= 0 {
		return 0
	}
	top := Breakpoints[len(Breakpoints)-1]
	if pm25 > top.ConcHigh {
		return MaxIndex
	}
	for _, bp := range Breakpoints {
		if pm25 <= bp.ConcHigh {
			c := math.Max(pm25, bp.ConcLow)
			t := (c - bp.ConcLow) / (bp.ConcHigh - bp.ConcLow)
			return int(math.Round(utils.Lerp(bp.IndexLow, bp.IndexHigh, t)))
		}
	}
	return MaxIndex
}

// ToPM25 approximately inverts FromPM25. It is used to reverse-estimate a
// concentration lag input from a live index reading.
func ToPM25(index float64) float64 {
	if math.IsNaN(index) || index <= 0 {
		return 0
	}
	if index >= MaxIndex {
		return Breakpoints[len(Breakpoints)-1].ConcHigh
	}
	for _, bp := range Breakpoints {
		if index <= bp.IndexHigh {
			i := math.Max(index, bp.IndexLow)
			t := (i - bp.IndexLow) / (bp.IndexHigh - bp.IndexLow)
			return utils.RoundTo(utils.Lerp(bp.ConcLow, bp.ConcHigh, t), 1)
		}
	}
	return Breakpoints[len(Breakpoints)-1].ConcHigh
}

// Category is one of the five severity bands used in explanations
type Category int

const (
	Good Category = iota
	Moderate
	UnhealthySensitive
	Unhealthy
	VeryUnhealthy
)

// CategoryOf places an index in its severity band
func CategoryOf(index int) Category {
	switch {
	case index <= 50:
		return Good
	case index <= 100:
		return Moderate
	case index <= 150:
		return UnhealthySensitive
	case index <= 200:
		return Unhealthy
	default:
		return VeryUnhealthy
	}
}

func (c Category) String() string {
	switch c {
	case Good:
		return "good"
	case Moderate:
		return "moderate"
	case UnhealthySensitive:
		return "unhealthy_sensitive"
	case Unhealthy:
		return "unhealthy"
	default:
		return "very_unhealthy"
	}
}
