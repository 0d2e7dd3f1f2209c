package memory

import (
	"context"
	"sort"
	"sync"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// AuditStore is an in-memory implementation of storage.AuditStore.
type AuditStore struct {
	mu      sync.RWMutex
	entries []*domain.RecomputeAudit // append order
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Record appends an audit entry.
func (s *AuditStore) Record(_ context.Context, a *domain.RecomputeAudit) error {
	if a == nil || a.AuditID == "" || a.Ticker == "" || a.AttemptedAt.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.AuditID == a.AuditID {
			return storage.ErrDuplicateKey
		}
	}
	entryCopy := *a
	entryCopy.Ticker = domain.NormalizeTicker(a.Ticker)
	entryCopy.Message = domain.TruncateMessage(a.Message)
	s.entries = append(s.entries, &entryCopy)
	return nil
}

// Latest returns the most recent entry for ticker.
func (s *AuditStore) Latest(ctx context.Context, ticker string) (*domain.RecomputeAudit, error) {
	entries, err := s.List(ctx, ticker, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, storage.ErrNotFound
	}
	return entries[0], nil
}

// List returns entries newest first.
func (s *AuditStore) List(_ context.Context, ticker string, limit int) ([]*domain.RecomputeAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := domain.NormalizeTicker(ticker)
	var result []*domain.RecomputeAudit
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if key != "" && e.Ticker != key {
			continue
		}
		entryCopy := *e
		result = append(result, &entryCopy)
	}

	// Stable so entries with equal timestamps keep newest-appended first
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AttemptedAt.After(result[j].AttemptedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeleteByTicker removes all entries of ticker.
func (s *AuditStore) DeleteByTicker(_ context.Context, ticker string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.NormalizeTicker(ticker)
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.Ticker == key {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept
	return removed, nil
}

var _ storage.AuditStore = (*AuditStore)(nil)
