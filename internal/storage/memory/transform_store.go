package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// TransformStore is an in-memory implementation of storage.TransformStore.
type TransformStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transform // keyed by transform_id
}

// NewTransformStore creates a new in-memory transform store.
func NewTransformStore() *TransformStore {
	return &TransformStore{
		data: make(map[string]*domain.Transform),
	}
}

// Upsert inserts or replaces a transform keyed by TransformID.
func (s *TransformStore) Upsert(_ context.Context, t *domain.Transform) error {
	if t == nil {
		return storage.ErrInvalidInput
	}
	in := *t
	in.Normalize()
	if in.DerivedTicker == "" || in.BaseTicker == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.data {
		if id != in.TransformID && other.DerivedTicker == in.DerivedTicker {
			return storage.ErrDuplicateKey
		}
	}

	now := time.Now().UTC()
	in.CreatedAt = now
	if existing, ok := s.data[in.TransformID]; ok {
		in.CreatedAt = existing.CreatedAt
	}
	in.UpdatedAt = now
	s.data[in.TransformID] = &in
	return nil
}

// GetByID retrieves a transform. Returns ErrNotFound if not exists.
func (s *TransformStore) GetByID(_ context.Context, transformID string) (*domain.Transform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[strings.TrimSpace(transformID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	tCopy := *t
	return &tCopy, nil
}

// GetByDerivedTicker retrieves the transform producing ticker.
func (s *TransformStore) GetByDerivedTicker(_ context.Context, ticker string) (*domain.Transform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := domain.NormalizeTicker(ticker)
	for _, t := range s.data {
		if t.DerivedTicker == key {
			tCopy := *t
			return &tCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// List returns transforms ordered by derived ticker.
func (s *TransformStore) List(_ context.Context, enabledOnly bool) ([]*domain.Transform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transform
	for _, t := range s.data {
		if enabledOnly && !t.Enabled {
			continue
		}
		tCopy := *t
		result = append(result, &tCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DerivedTicker < result[j].DerivedTicker
	})

	return result, nil
}

// Delete removes a transform. Returns ErrNotFound if not exists.
func (s *TransformStore) Delete(_ context.Context, transformID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(transformID)
	if _, ok := s.data[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data, key)
	return nil
}

// DeleteReferencing removes transforms whose derived, base or FX ticker is ticker.
func (s *TransformStore) DeleteReferencing(_ context.Context, ticker string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.NormalizeTicker(ticker)
	var removed []string
	for id, t := range s.data {
		if t.DerivedTicker == key || t.Uses(key) {
			removed = append(removed, id)
			delete(s.data, id)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

var _ storage.TransformStore = (*TransformStore)(nil)
