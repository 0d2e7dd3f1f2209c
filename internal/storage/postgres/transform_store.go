package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// TransformStore implements storage.TransformStore using PostgreSQL.
type TransformStore struct {
	pool *Pool
}

// NewTransformStore creates a new TransformStore.
func NewTransformStore(pool *Pool) *TransformStore {
	return &TransformStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransformStore = (*TransformStore)(nil)

const transformColumns = `
	transform_id, derived_ticker, base_ticker, fx_ticker, fx_op, target_currency, target_unit,
	multiplier, divider, enabled, notes, created_at, updated_at`

// Upsert inserts or replaces a transform keyed by transform_id.
// Returns ErrDuplicateKey if another transform defines the same derived ticker.
func (s *TransformStore) Upsert(ctx context.Context, t *domain.Transform) error {
	if t == nil {
		return storage.ErrInvalidInput
	}
	in := *t
	in.Normalize()
	if in.DerivedTicker == "" || in.BaseTicker == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transforms (
			transform_id, derived_ticker, base_ticker, fx_ticker, fx_op, target_currency, target_unit,
			multiplier, divider, enabled, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (transform_id) DO UPDATE SET
			derived_ticker = EXCLUDED.derived_ticker,
			base_ticker = EXCLUDED.base_ticker,
			fx_ticker = EXCLUDED.fx_ticker,
			fx_op = EXCLUDED.fx_op,
			target_currency = EXCLUDED.target_currency,
			target_unit = EXCLUDED.target_unit,
			multiplier = EXCLUDED.multiplier,
			divider = EXCLUDED.divider,
			enabled = EXCLUDED.enabled,
			notes = EXCLUDED.notes,
			updated_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query,
		in.TransformID,
		in.DerivedTicker,
		in.BaseTicker,
		in.FxTicker,
		string(in.FxOp),
		in.TargetCurrency,
		in.TargetUnit,
		in.Multiplier,
		in.Divider,
		in.Enabled,
		in.Notes,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("upsert transform: %w", err)
	}
	return nil
}

// GetByID retrieves a transform. Returns ErrNotFound if not exists.
func (s *TransformStore) GetByID(ctx context.Context, transformID string) (*domain.Transform, error) {
	query := `SELECT ` + transformColumns + ` FROM transforms WHERE transform_id = $1`
	return s.getOne(ctx, query, strings.TrimSpace(transformID))
}

// GetByDerivedTicker retrieves the transform producing ticker.
func (s *TransformStore) GetByDerivedTicker(ctx context.Context, ticker string) (*domain.Transform, error) {
	query := `SELECT ` + transformColumns + ` FROM transforms WHERE derived_ticker = $1`
	return s.getOne(ctx, query, domain.NormalizeTicker(ticker))
}

func (s *TransformStore) getOne(ctx context.Context, query, arg string) (*domain.Transform, error) {
	t, err := scanTransform(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transform: %w", err)
	}
	return t, nil
}

// List returns transforms ordered by derived ticker.
func (s *TransformStore) List(ctx context.Context, enabledOnly bool) ([]*domain.Transform, error) {
	query := `SELECT ` + transformColumns + ` FROM transforms WHERE ($1 = FALSE OR enabled) ORDER BY derived_ticker`

	rows, err := s.pool.Query(ctx, query, enabledOnly)
	if err != nil {
		return nil, fmt.Errorf("list transforms: %w", err)
	}
	defer rows.Close()

	var result []*domain.Transform
	for rows.Next() {
		t, err := scanTransform(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transform: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// Delete removes a transform. Returns ErrNotFound if not exists.
func (s *TransformStore) Delete(ctx context.Context, transformID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transforms WHERE transform_id = $1`, strings.TrimSpace(transformID))
	if err != nil {
		return fmt.Errorf("delete transform: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteReferencing removes transforms whose derived, base or FX ticker is ticker.
func (s *TransformStore) DeleteReferencing(ctx context.Context, ticker string) ([]string, error) {
	query := `
		DELETE FROM transforms
		WHERE derived_ticker = $1 OR base_ticker = $1 OR (fx_ticker <> '' AND fx_ticker = $1)
		RETURNING transform_id
	`

	rows, err := s.pool.Query(ctx, query, domain.NormalizeTicker(ticker))
	if err != nil {
		return nil, fmt.Errorf("delete referencing transforms: %w", err)
	}
	removed, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect removed transforms: %w", err)
	}
	sort.Strings(removed)
	return removed, nil
}

func scanTransform(row pgx.Row) (*domain.Transform, error) {
	var t domain.Transform
	var op string
	err := row.Scan(
		&t.TransformID,
		&t.DerivedTicker,
		&t.BaseTicker,
		&t.FxTicker,
		&op,
		&t.TargetCurrency,
		&t.TargetUnit,
		&t.Multiplier,
		&t.Divider,
		&t.Enabled,
		&t.Notes,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.FxOp = domain.FxOp(op)
	return &t, nil
}
