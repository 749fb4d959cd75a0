package forecast

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/metrics"
)

// Status describes what a cache read returned
type Status string

const (
	// StatusFresh is a forecast younger than the TTL
	StatusFresh Status = "fresh"
	// StatusStale is an expired forecast served because a refresh failed
	StatusStale Status = "stale"
	// StatusUnavailable means no forecast has ever been fetched successfully
	StatusUnavailable Status = "unavailable"
)

type entry struct {
	forecast  *domain.Forecast
	fetchedAt time.Time
}

// Cache holds the single process-wide forecast. Fresh reads are lock-free;
// refreshes are serialized and re-check freshness after taking the lock.
// A failed refresh leaves the previous entry in place.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	current atomic.Pointer[entry]
	// refresh is a one-slot lock that waiting callers can abandon
	refresh chan struct{}

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCache creates an empty cache in front of fetcher
func NewCache(fetcher Fetcher, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *Cache {
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		refresh: make(chan struct{}, 1),
		logger:  logger,
		metrics: m,
	}
}

// Get returns the cached forecast, refreshing it first when expired.
// It never fails: on refresh errors it returns the previous entry as stale,
// or nil with StatusUnavailable when there is none.
func (c *Cache) Get(ctx context.Context) (*domain.Forecast, Status) {
	f, status := c.get(ctx)
	c.metrics.RecordForecastRequest(string(status))
	return f, status
}

func (c *Cache) get(ctx context.Context) (*domain.Forecast, Status) {
	if e := c.current.Load(); c.fresh(e) {
		return e.forecast, StatusFresh
	}

	select {
	case c.refresh <- struct{}{}:
	case <-ctx.Done():
		return c.fallback()
	}
	defer func() { <-c.refresh }()

	// another caller may have refreshed while we waited
	if e := c.current.Load(); c.fresh(e) {
		return e.forecast, StatusFresh
	}

	f, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.logger.Error("Forecast refresh failed, serving previous entry", zap.Error(err))
		return c.fallback()
	}

	c.current.Store(&entry{forecast: f, fetchedAt: c.now()})
	return f, StatusFresh
}

func (c *Cache) fresh(e *entry) bool {
	return e != nil && c.now().Sub(e.fetchedAt) < c.ttl
}

func (c *Cache) fallback() (*domain.Forecast, Status) {
	if e := c.current.Load(); e != nil {
		if c.fresh(e) {
			return e.forecast, StatusFresh
		}
		return e.forecast, StatusStale
	}
	return nil, StatusUnavailable
}
