package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// RecipeStore is an in-memory implementation of storage.RecipeStore.
type RecipeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Recipe // keyed by derived ticker
}

// NewRecipeStore creates a new in-memory recipe store.
func NewRecipeStore() *RecipeStore {
	return &RecipeStore{
		data: make(map[string]*domain.Recipe),
	}
}

func copyRecipe(r *domain.Recipe) *domain.Recipe {
	out := *r
	out.SourceTickers = append([]string(nil), r.SourceTickers...)
	return &out
}

// Upsert inserts or fully replaces a recipe.
func (s *RecipeStore) Upsert(_ context.Context, r *domain.Recipe) error {
	if r == nil {
		return storage.ErrInvalidInput
	}
	in := copyRecipe(r)
	in.Normalize()
	if in.DerivedTicker == "" || len(in.SourceTickers) == 0 || in.Expression == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	in.CreatedAt = now
	if existing, ok := s.data[in.DerivedTicker]; ok {
		in.CreatedAt = existing.CreatedAt
	}
	in.UpdatedAt = now
	s.data[in.DerivedTicker] = in
	return nil
}

// GetByTicker retrieves a recipe. Returns ErrNotFound if not exists.
func (s *RecipeStore) GetByTicker(_ context.Context, derivedTicker string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[domain.NormalizeTicker(derivedTicker)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRecipe(r), nil
}

// List returns all recipes ordered by derived ticker.
func (s *RecipeStore) List(_ context.Context) ([]*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Recipe, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, copyRecipe(r))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DerivedTicker < result[j].DerivedTicker
	})

	return result, nil
}

// Delete removes a recipe. Returns ErrNotFound if not exists.
func (s *RecipeStore) Delete(_ context.Context, derivedTicker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.NormalizeTicker(derivedTicker)
	if _, ok := s.data[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data, key)
	return nil
}

// DeleteReferencing removes recipes that define or consume ticker.
func (s *RecipeStore) DeleteReferencing(_ context.Context, ticker string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.NormalizeTicker(ticker)
	var removed []string
	for derived, r := range s.data {
		if derived == key || r.References(key) {
			removed = append(removed, derived)
			delete(s.data, derived)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

var _ storage.RecipeStore = (*RecipeStore)(nil)
