package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[string]map[time.Time]*domain.Bar // ticker -> day -> bar
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[string]map[time.Time]*domain.Bar),
	}
}

// UpsertBulk writes bars keyed by (ticker, date). Later writes win.
func (s *PriceStore) UpsertBulk(_ context.Context, bars []*domain.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	// Validate the whole batch before writing anything
	for _, b := range bars {
		if b == nil || domain.NormalizeTicker(b.Ticker) == "" || b.Date.IsZero() {
			return 0, storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range bars {
		barCopy := *b
		barCopy.Ticker = domain.NormalizeTicker(b.Ticker)
		barCopy.Date = domain.Day(b.Date)
		series, ok := s.data[barCopy.Ticker]
		if !ok {
			series = make(map[time.Time]*domain.Bar)
			s.data[barCopy.Ticker] = series
		}
		series[barCopy.Date] = &barCopy
	}

	return len(bars), nil
}

// GetByTicker retrieves all bars for a ticker, ordered by date ASC.
func (s *PriceStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.Bar, error) {
	return s.GetSince(ctx, ticker, time.Time{})
}

// GetSince retrieves bars with date >= start, ordered by date ASC.
func (s *PriceStore) GetSince(_ context.Context, ticker string, start time.Time) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for day, b := range s.data[domain.NormalizeTicker(ticker)] {
		if day.Before(start) {
			continue
		}
		barCopy := *b
		result = append(result, &barCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// DeleteByTicker removes all bars of ticker.
func (s *PriceStore) DeleteByTicker(_ context.Context, ticker string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.NormalizeTicker(ticker)
	n := len(s.data[key])
	delete(s.data, key)
	return n, nil
}

// dateRange returns min and max keys of a per-day map.
func dateRange[T any](series map[time.Time]T) (first, last time.Time, ok bool) {
	for day := range series {
		if !ok {
			first, last, ok = day, day, true
			continue
		}
		if day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}
	return first, last, ok
}

var _ storage.PriceStore = (*PriceStore)(nil)
