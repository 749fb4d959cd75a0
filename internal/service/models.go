package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/smartcity/predictor/internal/features"
	"github.com/smartcity/predictor/internal/history"
	"github.com/smartcity/predictor/internal/metrics"
	"github.com/smartcity/predictor/internal/ml"
	"github.com/smartcity/predictor/internal/modelstore"
)

// ModelManager owns the current trained model. Readers get an immutable
// snapshot; retraining builds a complete new model before swapping it in.
type ModelManager struct {
	current atomic.Pointer[ml.Model]
	// mu serializes training runs
	mu sync.Mutex

	store   *modelstore.Store
	trainer *ml.Trainer
	history *history.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewModelManager creates a manager with no model loaded
func NewModelManager(store *modelstore.Store, trainer *ml.Trainer, hist *history.Store, logger *zap.Logger, m *metrics.Metrics) *ModelManager {
	return &ModelManager{
		store:   store,
		trainer: trainer,
		history: hist,
		logger:  logger,
		metrics: m,
	}
}

// Init loads persisted artifacts, or trains when they are absent or fail
// verification. Lack of data leaves the manager untrained without error.
func (m *ModelManager) Init(ctx context.Context) error {
	model, err := m.store.Load()
	switch {
	case err == nil:
		m.swap(model)
		return nil
	case errors.Is(err, modelstore.ErrIntegrity):
		m.logger.Warn("Model artifacts failed verification, retraining", zap.Error(err))
	case errors.Is(err, modelstore.ErrNotFound):
		m.logger.Info("No saved model found, training from history",
			zap.String("dir", m.store.Dir()))
	default:
		m.logger.Warn("Failed to load model artifacts, retraining", zap.Error(err))
	}

	if _, err := m.Retrain(ctx); err != nil {
		switch {
		case errors.Is(err, ErrNoData), errors.Is(err, ml.ErrInsufficientData),
			errors.Is(err, context.DeadlineExceeded):
			m.logger.Warn("Model not trained, predictions use the statistical baseline", zap.Error(err))
			return nil
		case m.Current() != nil:
			// trained but not persisted; serve it and retry on the next retrain
			m.logger.Error("Failed to persist trained model", zap.Error(err))
			return nil
		}
		return err
	}
	return nil
}

// Current returns the live model or nil
func (m *ModelManager) Current() *ml.Model {
	return m.current.Load()
}

// Trained reports whether a model is available
func (m *ModelManager) Trained() bool {
	return m.Current() != nil
}

// Retrain fits a fresh model from the historical store, swaps it in and
// persists it. The new model is served even if persisting fails; the
// storage error is still returned.
func (m *ModelManager) Retrain(ctx context.Context) (*ml.Model, error) {
	if m.history.Empty() {
		return nil, ErrNoData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	model, err := m.trainer.Train(ctx, features.Build(m.history.Records()))
	if err != nil {
		return nil, fmt.Errorf("service: failed to train model: %w", err)
	}
	m.metrics.ObserveTraining(time.Since(start).Seconds())
	m.swap(model)

	if err := m.store.Save(model); err != nil {
		return model, fmt.Errorf("service: failed to save model: %w", err)
	}
	return model, nil
}

func (m *ModelManager) swap(model *ml.Model) {
	m.current.Store(model)
	m.metrics.SetModelTrained(model != nil)
}
