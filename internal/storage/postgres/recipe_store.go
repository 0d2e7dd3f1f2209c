package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// RecipeStore implements storage.RecipeStore using PostgreSQL.
// Source tickers are kept as an ordered JSONB array.
type RecipeStore struct {
	pool *Pool
}

// NewRecipeStore creates a new RecipeStore.
func NewRecipeStore(pool *Pool) *RecipeStore {
	return &RecipeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RecipeStore = (*RecipeStore)(nil)

// Upsert inserts or fully replaces a recipe.
func (s *RecipeStore) Upsert(ctx context.Context, r *domain.Recipe) error {
	if r == nil {
		return storage.ErrInvalidInput
	}
	in := *r
	in.SourceTickers = append([]string(nil), r.SourceTickers...)
	in.Normalize()
	if in.DerivedTicker == "" || len(in.SourceTickers) == 0 || in.Expression == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO derived_recipes (derived_ticker, source_tickers, expression, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (derived_ticker) DO UPDATE SET
			source_tickers = EXCLUDED.source_tickers,
			expression = EXCLUDED.expression,
			updated_at = NOW()
	`

	if _, err := s.pool.Exec(ctx, query, in.DerivedTicker, in.SourceTickers, in.Expression); err != nil {
		return fmt.Errorf("upsert recipe: %w", err)
	}
	return nil
}

// GetByTicker retrieves a recipe. Returns ErrNotFound if not exists.
func (s *RecipeStore) GetByTicker(ctx context.Context, derivedTicker string) (*domain.Recipe, error) {
	query := `
		SELECT derived_ticker, source_tickers, expression, created_at, updated_at
		FROM derived_recipes
		WHERE derived_ticker = $1
	`

	r, err := scanRecipe(s.pool.QueryRow(ctx, query, domain.NormalizeTicker(derivedTicker)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	return r, nil
}

// List returns all recipes ordered by derived ticker.
func (s *RecipeStore) List(ctx context.Context) ([]*domain.Recipe, error) {
	query := `
		SELECT derived_ticker, source_tickers, expression, created_at, updated_at
		FROM derived_recipes
		ORDER BY derived_ticker
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	var result []*domain.Recipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Delete removes a recipe. Returns ErrNotFound if not exists.
func (s *RecipeStore) Delete(ctx context.Context, derivedTicker string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM derived_recipes WHERE derived_ticker = $1`, domain.NormalizeTicker(derivedTicker))
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteReferencing removes recipes that define or consume ticker.
func (s *RecipeStore) DeleteReferencing(ctx context.Context, ticker string) ([]string, error) {
	query := `
		DELETE FROM derived_recipes
		WHERE derived_ticker = $1 OR source_tickers ? $1
		RETURNING derived_ticker
	`

	rows, err := s.pool.Query(ctx, query, domain.NormalizeTicker(ticker))
	if err != nil {
		return nil, fmt.Errorf("delete referencing recipes: %w", err)
	}
	removed, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect removed recipes: %w", err)
	}
	sort.Strings(removed)
	return removed, nil
}

func scanRecipe(row pgx.Row) (*domain.Recipe, error) {
	var r domain.Recipe
	err := row.Scan(
		&r.DerivedTicker,
		&r.SourceTickers,
		&r.Expression,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
