package postgres

import (
	"context"
	"sort"
	"sync"

	"github.com/smartcity/predictor/internal/domain"
)

// mockCapacity bounds the in-memory log
const mockCapacity = 1000

// MockRepository implements domain.DataRepository in memory for demo mode
type MockRepository struct {
	mu   sync.RWMutex
	logs []domain.PredictionLog
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

// SavePredictionLog keeps the entry in memory, dropping the oldest beyond capacity
func (r *MockRepository) SavePredictionLog(ctx context.Context, entry domain.PredictionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, entry)
	if len(r.logs) > mockCapacity {
		r.logs = r.logs[len(r.logs)-mockCapacity:]
	}
	return nil
}

// RecentPredictions returns the newest logs first
func (r *MockRepository) RecentPredictions(ctx context.Context, limit int) ([]domain.PredictionLog, error) {
	r.mu.RLock()
	out := make([]domain.PredictionLog, len(r.logs))
	copy(out, r.logs)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op in mock mode
func (r *MockRepository) Close() {}
