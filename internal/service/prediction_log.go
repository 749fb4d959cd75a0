package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smartcity/predictor/internal/domain"
)

const (
	logWriteTimeout   = 5 * time.Second
	defaultRecentLogs = 20
	maxRecentLogs     = 200
)

// PredictionLogService persists predictions in the background
type PredictionLogService struct {
	repo   DataRepository
	logger *zap.Logger

	wgBg sync.WaitGroup // tracks background goroutines for graceful shutdown
}

// NewPredictionLogService creates a log service; a nil repo disables persistence
func NewPredictionLogService(repo DataRepository, logger *zap.Logger) *PredictionLogService {
	return &PredictionLogService{repo: repo, logger: logger}
}

// Record saves one request/response pair asynchronously. The caller's
// context is not used so the write outlives the request.
func (s *PredictionLogService) Record(req domain.PredictionRequest, resp domain.PredictionResponse) {
	if s == nil || s.repo == nil {
		return
	}
	entry := domain.NewPredictionLog(req, resp, time.Now().UTC())

	s.wgBg.Add(1)
	go func() {
		defer s.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), logWriteTimeout)
		defer cancel()
		if err := s.repo.SavePredictionLog(bgCtx, entry); err != nil {
			s.logger.Error("Failed to save prediction log",
				zap.String("id", entry.ID),
				zap.Error(err))
		}
	}()
}

// Recent returns the newest logs; limit is bounded to [1, 200]
func (s *PredictionLogService) Recent(ctx context.Context, limit int) ([]domain.PredictionLog, error) {
	if s == nil || s.repo == nil {
		return []domain.PredictionLog{}, nil
	}
	switch {
	case limit <= 0:
		limit = defaultRecentLogs
	case limit > maxRecentLogs:
		limit = maxRecentLogs
	}
	return s.repo.RecentPredictions(ctx, limit)
}

// WaitBackground blocks until all background save goroutines complete.
// Call during graceful shutdown to avoid dropped writes.
func (s *PredictionLogService) WaitBackground() {
	if s == nil {
		return
	}
	s.wgBg.Wait()
}
