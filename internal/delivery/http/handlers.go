package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/smartcity/predictor/internal/baseline"
	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/forecast"
	"github.com/smartcity/predictor/internal/history"
	"github.com/smartcity/predictor/internal/ml"
	"github.com/smartcity/predictor/internal/service"
)

// Request limits
const (
	maxQueryLength = 1000
	minTemperature = -50.0
	maxTemperature = 55.0
)

// modelType describes the trained estimator pair
const modelType = "GradientBoosting(PM2.5)+EPA_formula(AQI)+RandomForest(Traffic)"

// Handler contains all HTTP handlers
type Handler struct {
	pipeline   *service.Pipeline
	models     *service.ModelManager
	weather    *service.WeatherService
	forecast   service.ForecastSource
	logs       *service.PredictionLogService
	repo       service.DataRepository
	history    *history.Store
	stats      *baseline.Stats
	liveEnrich bool
	logger     *zap.Logger
}

// Deps are the services behind the handlers. Weather and Forecast may be nil.
type Deps struct {
	Pipeline   *service.Pipeline
	Models     *service.ModelManager
	Weather    *service.WeatherService
	Forecast   service.ForecastSource
	Logs       *service.PredictionLogService
	Repo       service.DataRepository
	History    *history.Store
	Stats      *baseline.Stats
	LiveEnrich bool
	Logger     *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(d Deps) *Handler {
	return &Handler{
		pipeline:   d.Pipeline,
		models:     d.Models,
		weather:    d.Weather,
		forecast:   d.Forecast,
		logs:       d.Logs,
		repo:       d.Repo,
		history:    d.History,
		stats:      d.Stats,
		liveEnrich: d.LiveEnrich,
		logger:     d.Logger,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	storage := "ok"
	if h.repo != nil {
		if err := h.repo.Health(c.UserContext()); err != nil {
			h.logger.Warn("Storage health check failed", zap.Error(err))
			storage = "unavailable"
		}
	}

	return c.JSON(fiber.Map{
		"status":       "ok",
		"service":      "smartcity-predictor",
		"version":      "1.0.0",
		"model_loaded": h.models.Trained(),
		"data_loaded":  !h.history.Empty(),
		"records":      h.history.Len(),
		"storage":      storage,
	})
}

// Predict runs the prediction pipeline. Only malformed bodies and
// out-of-range values are rejected; everything else degrades.
func (h *Handler) Predict(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req domain.PredictionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validatePrediction(req); err != nil {
		return err
	}

	if h.liveEnrich && h.weather != nil {
		req = h.weather.Enrich(ctx, req)
	}

	prediction := h.pipeline.Predict(ctx, req)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    prediction,
	})
}

func validatePrediction(req domain.PredictionRequest) error {
	if len([]rune(req.Query)) > maxQueryLength {
		return fiber.NewError(fiber.StatusBadRequest, "Query too long (max 1000 characters)")
	}
	for _, t := range []*float64{req.Temperature, req.LiveTemp} {
		if t != nil && (*t < minTemperature || *t > maxTemperature) {
			return fiber.NewError(fiber.StatusBadRequest, "Temperature must be between -50 and 55°C")
		}
	}
	if req.LiveAQI != nil && (*req.LiveAQI < 0 || *req.LiveAQI > 500) {
		return fiber.NewError(fiber.StatusBadRequest, "Live AQI must be between 0 and 500")
	}
	if req.LiveTraffic != nil && (*req.LiveTraffic < 0 || *req.LiveTraffic > 100) {
		return fiber.NewError(fiber.StatusBadRequest, "Live traffic must be between 0 and 100")
	}
	return nil
}

// ModelInfo returns model diagnostics
func (h *Handler) ModelInfo(c *fiber.Ctx) error {
	model := h.models.Current()
	if model == nil {
		return c.JSON(fiber.Map{
			"trained":           false,
			"library_available": true,
			"model_type":        modelType,
			"metrics":           nil,
		})
	}

	return c.JSON(fiber.Map{
		"trained":              true,
		"library_available":    true,
		"model_type":           modelType,
		"metrics":              model.Metrics,
		"feature_importance":   model.Metrics.FeatureImportance,
		"seasonal_diagnostics": model.Metrics.Seasonal,
		"feature_audit":        model.Metrics.Audit,
	})
}

// Retrain forces a full retrain from the historical store
func (h *Handler) Retrain(c *fiber.Ctx) error {
	model, err := h.models.Retrain(c.UserContext())
	switch {
	case errors.Is(err, service.ErrNoData):
		return fiber.NewError(fiber.StatusServiceUnavailable, "No historical data loaded")
	case errors.Is(err, ml.ErrInsufficientData):
		return fiber.NewError(fiber.StatusServiceUnavailable, "Not enough historical data to train")
	case err != nil:
		h.logger.Error("Retrain failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Retrain failed")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    model.Metrics,
	})
}

// Stats returns historical data statistics
func (h *Handler) Stats(c *fiber.Ctx) error {
	if h.history.Empty() {
		return fiber.NewError(fiber.StatusServiceUnavailable, "No historical data loaded")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"summary":      h.history.Summary(),
			"monthly":      h.stats.Months,
			"correlations": h.stats.Correlations,
		},
	})
}

// Forecast returns the cached forecast and its localized summary
func (h *Handler) Forecast(c *fiber.Ctx) error {
	if h.forecast == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Forecast not configured")
	}

	f, status := h.forecast.Get(c.UserContext())
	if f == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Forecast unavailable")
	}

	lang := domain.ParseLanguage(c.Query("lang"))
	return c.JSON(fiber.Map{
		"success": true,
		"status":  status,
		"data":    f,
		"summary": forecast.Format(f, c.Query("date"), lang),
	})
}

// GetWeather returns current weather data
func (h *Handler) GetWeather(c *fiber.Ctx) error {
	if h.weather == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Live weather not configured")
	}

	return c.JSON(domain.WeatherResponse{
		Data:    h.weather.GetCurrentWeather(c.UserContext()),
		Success: true,
	})
}

// RecentPredictions returns the latest prediction logs
func (h *Handler) RecentPredictions(c *fiber.Ctx) error {
	logs, err := h.logs.Recent(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		h.logger.Error("Failed to read prediction logs", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch prediction logs")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    logs,
		"count":   len(logs),
	})
}
