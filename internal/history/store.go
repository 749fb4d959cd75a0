// Package history holds the daily historical time series the models and
// statistics are built from. The store is read-only after construction.
package history

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/pkg/utils"
)

var (
	// ErrNoData is returned when an operation needs records and none are loaded
	ErrNoData = errors.New("history: no data loaded")
	// ErrDuplicateDate is returned when two records share a calendar day
	ErrDuplicateDate = errors.New("history: duplicate date")
)

// Store is an immutable, date-ascending series of daily records
type Store struct {
	records []domain.HistoricalRecord
}

// Summary describes the loaded series
type Summary struct {
	TotalRecords   int     `json:"total_records"`
	Start          string  `json:"start,omitempty"`
	End            string  `json:"end,omitempty"`
	Interpolated   int     `json:"interpolated_records"`
	AvgTemperature float64 `json:"avg_temperature"`
	AvgAQI         float64 `json:"avg_aqi"`
	AvgCongestion  float64 `json:"avg_traffic"`
}

// NewStore copies the records, orders them by date and rejects duplicate days
func NewStore(records []domain.HistoricalRecord) (*Store, error) {
	sorted := make([]domain.HistoricalRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for i := 1; i < len(sorted); i++ {
		if sameDay(sorted[i-1].Date, sorted[i].Date) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDate, sorted[i].Date.Format(domain.DateLayout))
		}
	}

	return &Store{records: sorted}, nil
}

// Records returns the series in date order. Callers must not modify it.
func (s *Store) Records() []domain.HistoricalRecord {
	if s == nil {
		return nil
	}
	return s.records
}

// Len returns the number of records
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Empty reports whether no records are loaded
func (s *Store) Empty() bool {
	return s.Len() == 0
}

// Before returns the records dated within the `days` calendar days strictly
// before date, oldest first
func (s *Store) Before(date time.Time, days int) []domain.HistoricalRecord {
	if s.Empty() || days <= 0 {
		return nil
	}
	day := truncateDay(date)
	from := day.AddDate(0, 0, -days)

	end := sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Date.Before(day)
	})
	start := sort.Search(end, func(i int) bool {
		return !s.records[i].Date.Before(from)
	})
	return s.records[start:end]
}

// Summary computes totals and averages over the whole series
func (s *Store) Summary() Summary {
	if s.Empty() {
		return Summary{}
	}

	var sumTemp, sumAQI, sumCongestion float64
	interpolated := 0
	for _, r := range s.records {
		sumTemp += r.Temperature
		sumAQI += r.AQI
		sumCongestion += r.Congestion
		if r.Interpolated {
			interpolated++
		}
	}
	n := float64(len(s.records))

	return Summary{
		TotalRecords:   len(s.records),
		Start:          s.records[0].Date.Format(domain.DateLayout),
		End:            s.records[len(s.records)-1].Date.Format(domain.DateLayout),
		Interpolated:   interpolated,
		AvgTemperature: utils.RoundTo(sumTemp/n, 1),
		AvgAQI:         utils.RoundTo(sumAQI/n, 1),
		AvgCongestion:  utils.RoundTo(sumCongestion/n, 1),
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
