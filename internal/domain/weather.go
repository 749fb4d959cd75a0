package domain

import "time"

// Weather represents current weather conditions for the city.
// Used as the source of live readings when a request carries none.
type Weather struct {
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    int       `json:"humidity"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	WindSpeed   float64   `json:"wind_speed"`
	Pressure    int       `json:"pressure"`
	PM25        *float64  `json:"pm25,omitempty"`
	AQI         int       `json:"aqi"`
	City        string    `json:"city"`
	Country     string    `json:"country"`
	Timestamp   time.Time `json:"timestamp"`
	IsMock      bool      `json:"is_mock"`
}

// WeatherResponse wraps weather data with metadata
type WeatherResponse struct {
	Data    Weather `json:"data"`
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
}

// AlmatyCenter coordinates
const (
	AlmatyCenterLat = 43.2389
	AlmatyCenterLon = 76.8897
)
