package domain

import "time"

// PredictionRequest represents input for a prediction
type PredictionRequest struct {
	Date        string   `json:"date"`
	Temperature *float64 `json:"temperature,omitempty"`
	Query       string   `json:"query,omitempty"`
	Language    string   `json:"language,omitempty"`
	// Live sensor readings; the handler may fill them from the live weather service
	LiveAQI     *int     `json:"live_aqi,omitempty"`
	LiveTraffic *float64 `json:"live_traffic,omitempty"`
	LiveTemp    *float64 `json:"live_temp,omitempty"`
}

// PredictionResponse represents prediction output
type PredictionResponse struct {
	ID               string   `json:"id"`
	TargetDate       string   `json:"target_date"`
	Prediction       string   `json:"prediction"`
	ConfidenceScore  float64  `json:"confidence_score"`
	AQIPrediction    int      `json:"aqi_prediction"`
	TrafficIndex     float64  `json:"traffic_index_prediction"`
	PM25Prediction   *float64 `json:"pm25_prediction,omitempty"`
	Reasoning        string   `json:"reasoning"`
	Method           string   `json:"method"`
	LagFeaturesKnown bool     `json:"lag_features_available"`
	Degradations     []string `json:"degradations,omitempty"`
	IsMock           bool     `json:"is_mock"`
}

// ValueSource records where a resolved input came from
type ValueSource string

const (
	SourceLive     ValueSource = "live"
	SourceExplicit ValueSource = "explicit"
	SourceHistory  ValueSource = "history"
	SourceSeasonal ValueSource = "seasonal"
	SourceNone     ValueSource = "none"
)

// LagValues are the prior-day and trailing 7-day inputs of the feature vector
type LagValues struct {
	PM25Lag1        float64 `json:"pm25_lag1"`
	CongestionLag1  float64 `json:"traffic_lag1"`
	TempLag1        float64 `json:"temp_lag1"`
	PM25Roll7       float64 `json:"pm25_rolling7"`
	CongestionRoll7 float64 `json:"traffic_rolling7"`
	TempRoll7       float64 `json:"temp_rolling7"`
}

// PredictionContext is the fully resolved, request-scoped input of the pipeline.
// Downstream components read it and never re-apply precedence rules.
type PredictionContext struct {
	Now        time.Time
	TargetDate time.Time
	Month      int
	DayOfWeek  int
	IsWeekend  bool

	// Temperature is the effective temperature; HasTemperature is false when
	// neither a reading nor seasonal history is available
	Temperature       float64
	TemperatureSource ValueSource
	HasTemperature    bool

	Humidity      float64
	WindSpeed     float64
	Precipitation float64

	LiveAQI         *int
	LiveCongestion  *float64
	LiveTemperature *float64

	Lags      LagValues
	LagSource ValueSource
	// LagsKnown is false when lag values are seasonal estimates, not measurements
	LagsKnown bool

	Query    string
	Language Language
}

// MeasuredTemperature returns the temperature only when it came from a reading
// or the caller, never from seasonal averages
func (c PredictionContext) MeasuredTemperature() *float64 {
	if !c.HasTemperature {
		return nil
	}
	if c.TemperatureSource == SourceLive || c.TemperatureSource == SourceExplicit {
		t := c.Temperature
		return &t
	}
	return nil
}

// HasLiveData reports whether any live reading reached the pipeline
func (c PredictionContext) HasLiveData() bool {
	return c.LiveAQI != nil || c.LiveCongestion != nil || c.LiveTemperature != nil
}
