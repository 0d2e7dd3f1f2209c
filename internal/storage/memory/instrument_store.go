package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// InstrumentStore is an in-memory implementation of storage.InstrumentStore.
type InstrumentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Instrument // keyed by ticker
}

// NewInstrumentStore creates a new in-memory instrument store.
func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{
		data: make(map[string]*domain.Instrument),
	}
}

// Upsert inserts an instrument or merges metadata into the existing entry.
func (s *InstrumentStore) Upsert(_ context.Context, inst *domain.Instrument) error {
	if inst == nil {
		return storage.ErrInvalidInput
	}
	in := *inst
	in.Normalize()
	if in.Ticker == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.data[in.Ticker]
	if !ok {
		if in.Source == "" {
			in.Source = domain.SourceLocal
		}
		in.CreatedAt = now
		in.UpdatedAt = now
		s.data[in.Ticker] = &in
		return nil
	}

	merged := domain.MergeMeta(*existing, in)
	merged.UpdatedAt = now
	s.data[in.Ticker] = &merged
	return nil
}

// GetByTicker retrieves an instrument. Returns ErrNotFound if not exists.
func (s *InstrumentStore) GetByTicker(_ context.Context, ticker string) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.data[domain.NormalizeTicker(ticker)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	instCopy := *inst
	return &instCopy, nil
}

// List returns instruments ordered by ticker.
func (s *InstrumentStore) List(_ context.Context, onlyWatched bool) ([]*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Instrument
	for _, inst := range s.data {
		if onlyWatched && !inst.Watched {
			continue
		}
		instCopy := *inst
		result = append(result, &instCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Ticker < result[j].Ticker
	})

	return result, nil
}

// SetWatched sets the watch flag. Returns ErrNotFound if not exists.
func (s *InstrumentStore) SetWatched(_ context.Context, ticker string, watched bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.data[domain.NormalizeTicker(ticker)]
	if !ok {
		return storage.ErrNotFound
	}
	inst.Watched = watched
	inst.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes an instrument.
func (s *InstrumentStore) Delete(_ context.Context, ticker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, domain.NormalizeTicker(ticker))
	return nil
}

var _ storage.InstrumentStore = (*InstrumentStore)(nil)
