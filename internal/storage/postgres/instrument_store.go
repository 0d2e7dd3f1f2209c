package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// InstrumentStore implements storage.InstrumentStore using PostgreSQL.
type InstrumentStore struct {
	pool *Pool
}

// NewInstrumentStore creates a new InstrumentStore.
func NewInstrumentStore(pool *Pool) *InstrumentStore {
	return &InstrumentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.InstrumentStore = (*InstrumentStore)(nil)

const instrumentColumns = `ticker, name, quote_type, exchange, currency, unit, category, source, is_watched, created_at, updated_at`

// Upsert inserts an instrument or merges non-empty metadata into the existing row.
func (s *InstrumentStore) Upsert(ctx context.Context, inst *domain.Instrument) error {
	if inst == nil {
		return storage.ErrInvalidInput
	}
	in := *inst
	in.Normalize()
	if in.Ticker == "" {
		return storage.ErrInvalidInput
	}
	if in.Source == "" {
		in.Source = domain.SourceLocal
	}

	query := `
		INSERT INTO instruments (ticker, name, quote_type, exchange, currency, unit, category, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ticker) DO UPDATE SET
			name       = COALESCE(NULLIF(EXCLUDED.name, ''), instruments.name),
			quote_type = COALESCE(NULLIF(EXCLUDED.quote_type, ''), instruments.quote_type),
			exchange   = COALESCE(NULLIF(EXCLUDED.exchange, ''), instruments.exchange),
			currency   = COALESCE(NULLIF(EXCLUDED.currency, ''), instruments.currency),
			unit       = COALESCE(NULLIF(EXCLUDED.unit, ''), instruments.unit),
			category   = COALESCE(NULLIF(EXCLUDED.category, ''), instruments.category),
			updated_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query,
		in.Ticker,
		in.Name,
		in.QuoteType,
		in.Exchange,
		in.Currency,
		in.Unit,
		in.Category,
		in.Source,
	)
	if err != nil {
		return fmt.Errorf("upsert instrument: %w", err)
	}
	return nil
}

// GetByTicker retrieves an instrument. Returns ErrNotFound if not exists.
func (s *InstrumentStore) GetByTicker(ctx context.Context, ticker string) (*domain.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM instruments WHERE ticker = $1`

	row := s.pool.QueryRow(ctx, query, domain.NormalizeTicker(ticker))
	inst, err := scanInstrument(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get instrument: %w", err)
	}
	return inst, nil
}

// List returns instruments ordered by ticker.
func (s *InstrumentStore) List(ctx context.Context, onlyWatched bool) ([]*domain.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM instruments WHERE ($1 = FALSE OR is_watched) ORDER BY ticker`

	rows, err := s.pool.Query(ctx, query, onlyWatched)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var result []*domain.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		result = append(result, inst)
	}
	return result, rows.Err()
}

// SetWatched sets the watch flag. Returns ErrNotFound if not exists.
func (s *InstrumentStore) SetWatched(ctx context.Context, ticker string, watched bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE instruments SET is_watched = $2, updated_at = NOW() WHERE ticker = $1`,
		domain.NormalizeTicker(ticker), watched,
	)
	if err != nil {
		return fmt.Errorf("set watched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes an instrument.
func (s *InstrumentStore) Delete(ctx context.Context, ticker string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM instruments WHERE ticker = $1`, domain.NormalizeTicker(ticker))
	if err != nil {
		return fmt.Errorf("delete instrument: %w", err)
	}
	return nil
}

func scanInstrument(row pgx.Row) (*domain.Instrument, error) {
	var inst domain.Instrument
	err := row.Scan(
		&inst.Ticker,
		&inst.Name,
		&inst.QuoteType,
		&inst.Exchange,
		&inst.Currency,
		&inst.Unit,
		&inst.Category,
		&inst.Source,
		&inst.Watched,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}
