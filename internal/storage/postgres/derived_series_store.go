package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// DerivedSeriesStore implements storage.DerivedSeriesStore using PostgreSQL.
type DerivedSeriesStore struct {
	pool *Pool
}

// NewDerivedSeriesStore creates a new DerivedSeriesStore.
func NewDerivedSeriesStore(pool *Pool) *DerivedSeriesStore {
	return &DerivedSeriesStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DerivedSeriesStore = (*DerivedSeriesStore)(nil)

// UpsertBulk writes points keyed by (ticker, date) in one batch.
func (s *DerivedSeriesStore) UpsertBulk(ctx context.Context, ticker string, points []domain.Point) (int, error) {
	key := domain.NormalizeTicker(ticker)
	if key == "" {
		return 0, storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO derived_daily (derived_ticker, date, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (derived_ticker, date) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(query, key, domain.Day(p.Date), p.Value)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for range points {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, fmt.Errorf("upsert derived point: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return len(points), nil
}

// GetByTicker retrieves the whole series, ordered by date ASC.
func (s *DerivedSeriesStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.SeriesPoint, error) {
	return s.GetSince(ctx, ticker, time.Time{})
}

// GetSince retrieves points with date >= start, ordered by date ASC.
func (s *DerivedSeriesStore) GetSince(ctx context.Context, ticker string, start time.Time) ([]*domain.SeriesPoint, error) {
	query := `
		SELECT derived_ticker, date, value, updated_at
		FROM derived_daily
		WHERE derived_ticker = $1 AND date >= $2
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.NormalizeTicker(ticker), domain.Day(start))
	if err != nil {
		return nil, fmt.Errorf("query derived series: %w", err)
	}
	defer rows.Close()

	var result []*domain.SeriesPoint
	for rows.Next() {
		var p domain.SeriesPoint
		if err := rows.Scan(&p.Ticker, &p.Date, &p.Value, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan derived point: %w", err)
		}
		p.Date = domain.Day(p.Date)
		result = append(result, &p)
	}
	return result, rows.Err()
}

// LastDate returns the latest stored date of ticker.
func (s *DerivedSeriesStore) LastDate(ctx context.Context, ticker string) (time.Time, bool, error) {
	return dateBound(ctx, s.pool, `SELECT MAX(date) FROM derived_daily WHERE derived_ticker = $1`, ticker)
}

// DeleteByTicker removes the series of ticker.
func (s *DerivedSeriesStore) DeleteByTicker(ctx context.Context, ticker string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM derived_daily WHERE derived_ticker = $1`, domain.NormalizeTicker(ticker))
	if err != nil {
		return 0, fmt.Errorf("delete derived series: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
