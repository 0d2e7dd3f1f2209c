package clickhouse

import (
	"context"
	"fmt"
	"time"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// DerivedSeriesStore implements storage.DerivedSeriesStore using ClickHouse.
// The table is a ReplacingMergeTree versioned by updated_at, so an upsert is
// a plain insert and reads use FINAL to see only the latest row per key.
type DerivedSeriesStore struct {
	conn *Conn
	now  func() time.Time
}

// NewDerivedSeriesStore creates a new DerivedSeriesStore.
func NewDerivedSeriesStore(conn *Conn) *DerivedSeriesStore {
	return &DerivedSeriesStore{conn: conn, now: time.Now}
}

// Compile-time interface check.
var _ storage.DerivedSeriesStore = (*DerivedSeriesStore)(nil)

// UpsertBulk writes points for ticker in one batch. Later writes win.
func (s *DerivedSeriesStore) UpsertBulk(ctx context.Context, ticker string, points []domain.Point) (int, error) {
	key := domain.NormalizeTicker(ticker)
	if key == "" {
		return 0, storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return 0, nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO derived_daily (derived_ticker, date, value, updated_at)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	updatedAt := s.now().UTC()
	for _, p := range points {
		if err := batch.Append(key, domain.Day(p.Date), p.Value, updatedAt); err != nil {
			return 0, fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}
	return len(points), nil
}

// GetByTicker retrieves the whole series, ordered by date ASC.
func (s *DerivedSeriesStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.SeriesPoint, error) {
	query := `
		SELECT derived_ticker, date, value, updated_at
		FROM derived_daily FINAL
		WHERE derived_ticker = ?
		ORDER BY date ASC
	`
	return s.query(ctx, query, domain.NormalizeTicker(ticker))
}

// GetSince retrieves points with date >= start, ordered by date ASC.
func (s *DerivedSeriesStore) GetSince(ctx context.Context, ticker string, start time.Time) ([]*domain.SeriesPoint, error) {
	query := `
		SELECT derived_ticker, date, value, updated_at
		FROM derived_daily FINAL
		WHERE derived_ticker = ? AND date >= ?
		ORDER BY date ASC
	`
	return s.query(ctx, query, domain.NormalizeTicker(ticker), domain.Day(start))
}

func (s *DerivedSeriesStore) query(ctx context.Context, query string, args ...any) ([]*domain.SeriesPoint, error) {
	rows, err := s.conn.Query(ctx, query, args...)
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
	var (
		count uint64
		last  time.Time
	)
	row := s.conn.QueryRow(ctx,
		`SELECT count(), max(date) FROM derived_daily FINAL WHERE derived_ticker = ?`,
		domain.NormalizeTicker(ticker),
	)
	if err := row.Scan(&count, &last); err != nil {
		return time.Time{}, false, fmt.Errorf("query last date: %w", err)
	}
	if count == 0 {
		return time.Time{}, false, nil
	}
	return domain.Day(last), true, nil
}

// DeleteByTicker removes the series of ticker with a lightweight delete.
func (s *DerivedSeriesStore) DeleteByTicker(ctx context.Context, ticker string) (int, error) {
	key := domain.NormalizeTicker(ticker)

	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM derived_daily FINAL WHERE derived_ticker = ?`, key)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count derived series: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.conn.Exec(ctx, `DELETE FROM derived_daily WHERE derived_ticker = ?`, key); err != nil {
		return 0, fmt.Errorf("delete derived series: %w", err)
	}
	return int(count), nil
}
