package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// DerivedSeriesStore is an in-memory implementation of storage.DerivedSeriesStore.
type DerivedSeriesStore struct {
	mu   sync.RWMutex
	data map[string]map[time.Time]*domain.SeriesPoint // ticker -> day -> point
}

// NewDerivedSeriesStore creates a new in-memory derived series store.
func NewDerivedSeriesStore() *DerivedSeriesStore {
	return &DerivedSeriesStore{
		data: make(map[string]map[time.Time]*domain.SeriesPoint),
	}
}

// UpsertBulk writes points keyed by (ticker, date). Later writes win.
func (s *DerivedSeriesStore) UpsertBulk(_ context.Context, ticker string, points []domain.Point) (int, error) {
	key := domain.NormalizeTicker(ticker)
	if key == "" {
		return 0, storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.data[key]
	if !ok {
		series = make(map[time.Time]*domain.SeriesPoint)
		s.data[key] = series
	}
	now := time.Now().UTC()
	for _, p := range points {
		day := domain.Day(p.Date)
		series[day] = &domain.SeriesPoint{
			Ticker:    key,
			Date:      day,
			Value:     p.Value,
			UpdatedAt: now,
		}
	}

	return len(points), nil
}

// GetByTicker retrieves the whole series, ordered by date ASC.
func (s *DerivedSeriesStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.SeriesPoint, error) {
	return s.GetSince(ctx, ticker, time.Time{})
}

// GetSince retrieves points with date >= start, ordered by date ASC.
func (s *DerivedSeriesStore) GetSince(_ context.Context, ticker string, start time.Time) ([]*domain.SeriesPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SeriesPoint
	for day, p := range s.data[domain.NormalizeTicker(ticker)] {
		if day.Before(start) {
			continue
		}
		pointCopy := *p
		result = append(result, &pointCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// LastDate returns the latest stored date of ticker.
func (s *DerivedSeriesStore) LastDate(_ context.Context, ticker string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, last, ok := dateRange(s.data[domain.NormalizeTicker(ticker)])
	return last, ok, nil
}

// DeleteByTicker removes the series of ticker.
func (s *DerivedSeriesStore) DeleteByTicker(_ context.Context, ticker string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.NormalizeTicker(ticker)
	n := len(s.data[key])
	delete(s.data, key)
	return n, nil
}

var _ storage.DerivedSeriesStore = (*DerivedSeriesStore)(nil)
