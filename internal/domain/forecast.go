package domain

import "time"

// DailyForecast is one day of the merged weather and air-quality forecast.
// Air-quality fields stay nil when that sub-fetch failed.
type DailyForecast struct {
	Date          string   `json:"date"`
	TempMax       *float64 `json:"temp_max"`
	TempMin       *float64 `json:"temp_min"`
	TempMean      *float64 `json:"temp_mean"`
	Precipitation *float64 `json:"precipitation"`
	WindMax       *float64 `json:"wind_max"`
	WeatherCode   *int     `json:"weather_code"`
	Humidity      *float64 `json:"humidity"`
	AQIMean       *int     `json:"aqi_mean,omitempty"`
	AQIMax        *int     `json:"aqi_max,omitempty"`
	PM25Mean      *float64 `json:"pm25_mean,omitempty"`
}

// HourlyForecast is one hour of the merged forecast
type HourlyForecast struct {
	Time     string   `json:"time"`
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
	Wind     *float64 `json:"wind"`
	Precip   *float64 `json:"precip"`
	AQI      *int     `json:"aqi,omitempty"`
}

// Forecast is the merged multi-day forecast payload held by the forecast cache
type Forecast struct {
	Daily         []DailyForecast  `json:"daily"`
	Hourly        []HourlyForecast `json:"hourly"`
	HasAirQuality bool             `json:"has_air_quality"`
	FetchedAt     time.Time        `json:"fetched_at"`
}

// Day returns the daily entry for a YYYY-MM-DD date
func (f *Forecast) Day(date string) (DailyForecast, bool) {
	if f == nil {
		return DailyForecast{}, false
	}
	for _, d := range f.Daily {
		if d.Date == date {
			return d, true
		}
	}
	return DailyForecast{}, false
}
