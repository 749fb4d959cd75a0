package domain

import "time"

// DateLayout is the calendar-day format used in data files and requests
const DateLayout = "2006-01-02"

// HistoricalRecord is one calendar day of weather, pollution and traffic.
// Records are immutable once loaded by the historical store.
type HistoricalRecord struct {
	Date          time.Time `json:"date"`
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	WindSpeed     float64   `json:"wind_speed"`
	Precipitation float64   `json:"precipitation"`

	// PM25 is the pollutant concentration in µg/m³, AQI the index derived from it
	PM25       float64 `json:"pm25"`
	AQI        float64 `json:"aqi"`
	Congestion float64 `json:"traffic_index"`

	Month     int  `json:"month"`
	DayOfWeek int  `json:"day_of_week"` // Monday=0
	IsWeekend bool `json:"is_weekend"`

	PM10  *float64 `json:"pm10,omitempty"`
	NO2   *float64 `json:"no2,omitempty"`
	SO2   *float64 `json:"so2,omitempty"`
	Ozone *float64 `json:"ozone,omitempty"`

	// Interpolated marks a pollutant target that was back-filled rather than measured
	Interpolated bool `json:"is_interpolated"`
	// CongestionImputed marks a congestion target filled with the column median
	CongestionImputed bool `json:"-"`
}

// Season groups months the way the city's heating and vacation cycles do
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
)

// Seasons in calendar order starting from winter
var Seasons = []Season{SeasonWinter, SeasonSpring, SeasonSummer, SeasonAutumn}

// SeasonOf maps a month (1-12) to its season
func SeasonOf(month int) Season {
	switch month {
	case 12, 1, 2:
		return SeasonWinter
	case 3, 4, 5:
		return SeasonSpring
	case 6, 7, 8:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

// IsHeatingSeason reports whether coal heating runs in the given month
func IsHeatingSeason(month int) bool {
	return month >= 10 || month <= 3
}

// WeekdayIndex converts Go's Sunday-first weekday to Monday=0
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
