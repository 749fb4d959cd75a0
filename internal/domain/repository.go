package domain

import (
	"context"
	"time"
)

// PredictionLog is a persisted prediction request/response pair
type PredictionLog struct {
	ID                 string    `json:"id"`
	RequestDate        string    `json:"request_date"`
	RequestTemperature *float64  `json:"request_temperature,omitempty"`
	RequestQuery       string    `json:"request_query,omitempty"`
	Prediction         string    `json:"prediction"`
	ConfidenceScore    float64   `json:"confidence_score"`
	AQIPrediction      int       `json:"aqi_prediction"`
	TrafficPrediction  float64   `json:"traffic_prediction"`
	Method             string    `json:"method"`
	IsMock             bool      `json:"is_mock"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewPredictionLog pairs a request with the response it produced
func NewPredictionLog(req PredictionRequest, resp PredictionResponse, at time.Time) PredictionLog {
	return PredictionLog{
		ID:                 resp.ID,
		RequestDate:        req.Date,
		RequestTemperature: req.Temperature,
		RequestQuery:       req.Query,
		Prediction:         resp.Prediction,
		ConfidenceScore:    resp.ConfidenceScore,
		AQIPrediction:      resp.AQIPrediction,
		TrafficPrediction:  resp.TrafficIndex,
		Method:             resp.Method,
		IsMock:             resp.IsMock,
		CreatedAt:          at,
	}
}

// DataRepository defines the interface for prediction log persistence
// This follows the Dependency Inversion Principle - domain defines the interface
type DataRepository interface {
	// SavePredictionLog persists a prediction request/response
	SavePredictionLog(ctx context.Context, entry PredictionLog) error

	// RecentPredictions returns the newest logs first
	RecentPredictions(ctx context.Context, limit int) ([]PredictionLog, error)

	// Health checks storage connectivity
	Health(ctx context.Context) error

	// Close releases the underlying connections
	Close()
}
