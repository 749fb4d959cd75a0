package forecast

import (
	"math"
	"strings"
	"time"

	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/pkg/utils"
)

// maxHourly caps the hourly series of a merged forecast
const maxHourly = 72

// Merge combines the weather payload with the optional air-quality payload.
// With air == nil the derived air-quality fields are left empty.
func Merge(weather *weatherResponse, air *airQualityResponse, fetchedAt time.Time) *domain.Forecast {
	f := &domain.Forecast{
		Daily:         make([]domain.DailyForecast, 0, len(weather.Daily.Time)),
		HasAirQuality: air != nil,
		FetchedAt:     fetchedAt,
	}

	d := weather.Daily
	for i, date := range d.Time {
		day := domain.DailyForecast{
			Date:          date,
			TempMax:       at(d.TempMax, i),
			TempMin:       at(d.TempMin, i),
			TempMean:      at(d.TempMean, i),
			Precipitation: at(d.Precipitation, i),
			WindMax:       at(d.WindMax, i),
			WeatherCode:   at(d.WeatherCode, i),
			Humidity:      at(d.Humidity, i),
		}
		if air != nil {
			day.AQIMean, day.AQIMax, day.PM25Mean = dailyAirQuality(air, date)
		}
		f.Daily = append(f.Daily, day)
	}

	hourlyAQI := make(map[string]*float64)
	if air != nil {
		for i, t := range air.Hourly.Time {
			hourlyAQI[t] = at(air.Hourly.USAQI, i)
		}
	}

	h := weather.Hourly
	n := len(h.Time)
	if n > maxHourly {
		n = maxHourly
	}
	f.Hourly = make([]domain.HourlyForecast, 0, n)
	for i := 0; i < n; i++ {
		entry := domain.HourlyForecast{
			Time:     h.Time[i],
			Temp:     at(h.Temperature, i),
			Humidity: at(h.Humidity, i),
			Wind:     at(h.WindSpeed, i),
			Precip:   at(h.Precipitation, i),
		}
		if v := hourlyAQI[h.Time[i]]; v != nil {
			idx := int(math.Round(*v))
			entry.AQI = &idx
		}
		f.Hourly = append(f.Hourly, entry)
	}

	return f
}

// dailyAirQuality aggregates the hourly series whose timestamps fall on date
func dailyAirQuality(air *airQualityResponse, date string) (mean, peak *int, pm25 *float64) {
	var aqiSum, aqiMax, pmSum float64
	var aqiN, pmN int
	for i, t := range air.Hourly.Time {
		if !strings.HasPrefix(t, date) {
			continue
		}
		if v := at(air.Hourly.USAQI, i); v != nil {
			aqiSum += *v
			aqiMax = math.Max(aqiMax, *v)
			aqiN++
		}
		if v := at(air.Hourly.PM25, i); v != nil {
			pmSum += *v
			pmN++
		}
	}

	if aqiN > 0 {
		m := int(math.Round(aqiSum / float64(aqiN)))
		x := int(math.Round(aqiMax))
		mean, peak = &m, &x
	}
	if pmN > 0 {
		p := utils.RoundTo(pmSum/float64(pmN), 1)
		pm25 = &p
	}
	return mean, peak, pm25
}

// at returns s[i] or nil when the provider sent a shorter series
func at[T any](s []*T, i int) *T {
	if i < len(s) {
		return s[i]
	}
	return nil
}
