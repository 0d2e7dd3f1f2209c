package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// UpsertBulk writes bars keyed by (ticker, date) in one transaction.
func (s *PriceStore) UpsertBulk(ctx context.Context, bars []*domain.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	for _, b := range bars {
		if b == nil || domain.NormalizeTicker(b.Ticker) == "" || b.Date.IsZero() {
			return 0, storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO prices_daily (ticker, date, open, high, low, close, adj_close, volume, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (ticker, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			adj_close = EXCLUDED.adj_close,
			volume = EXCLUDED.volume,
			updated_at = EXCLUDED.updated_at
	`

	for _, b := range bars {
		_, err := tx.Exec(ctx, query,
			domain.NormalizeTicker(b.Ticker),
			domain.Day(b.Date),
			b.Open,
			b.High,
			b.Low,
			b.Close,
			b.AdjClose,
			b.Volume,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert bar: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return len(bars), nil
}

// GetByTicker retrieves all bars for a ticker, ordered by date ASC.
func (s *PriceStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.Bar, error) {
	return s.GetSince(ctx, ticker, time.Time{})
}

// GetSince retrieves bars with date >= start, ordered by date ASC.
func (s *PriceStore) GetSince(ctx context.Context, ticker string, start time.Time) ([]*domain.Bar, error) {
	query := `
		SELECT ticker, date, open, high, low, close, adj_close, volume
		FROM prices_daily
		WHERE ticker = $1 AND date >= $2
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.NormalizeTicker(ticker), domain.Day(start))
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var result []*domain.Bar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// DeleteByTicker removes all bars of ticker.
func (s *PriceStore) DeleteByTicker(ctx context.Context, ticker string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM prices_daily WHERE ticker = $1`, domain.NormalizeTicker(ticker))
	if err != nil {
		return 0, fmt.Errorf("delete bars: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// dateBound runs a MIN/MAX(date) query; a NULL result means no rows.
func dateBound(ctx context.Context, pool *Pool, query, ticker string) (time.Time, bool, error) {
	var d *time.Time
	if err := pool.QueryRow(ctx, query, domain.NormalizeTicker(ticker)).Scan(&d); err != nil {
		return time.Time{}, false, fmt.Errorf("query date bound: %w", err)
	}
	if d == nil {
		return time.Time{}, false, nil
	}
	return domain.Day(*d), true, nil
}

func scanBar(row pgx.Row) (*domain.Bar, error) {
	var b domain.Bar
	err := row.Scan(
		&b.Ticker,
		&b.Date,
		&b.Open,
		&b.High,
		&b.Low,
		&b.Close,
		&b.AdjClose,
		&b.Volume,
	)
	if err != nil {
		return nil, err
	}
	b.Date = domain.Day(b.Date)
	return &b, nil
}
