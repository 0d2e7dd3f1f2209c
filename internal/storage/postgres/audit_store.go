package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// AuditStore implements storage.AuditStore using PostgreSQL (refresh_log).
type AuditStore struct {
	pool *Pool
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(pool *Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AuditStore = (*AuditStore)(nil)

// Record appends an audit entry. Returns ErrDuplicateKey if audit_id exists.
func (s *AuditStore) Record(ctx context.Context, a *domain.RecomputeAudit) error {
	if a == nil || a.AuditID == "" || a.Ticker == "" || a.AttemptedAt.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO refresh_log (audit_id, ticker, kind, status, message, last_success_date, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		a.AuditID,
		domain.NormalizeTicker(a.Ticker),
		string(a.Kind),
		string(a.Status),
		domain.TruncateMessage(a.Message),
		a.LastSuccessDate,
		a.AttemptedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("record audit: %w", err)
	}
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
func (s *AuditStore) List(ctx context.Context, ticker string, limit int) ([]*domain.RecomputeAudit, error) {
	query := `
		SELECT audit_id::text, ticker, kind, status, message, last_success_date, attempted_at
		FROM refresh_log
		WHERE ($1 = '' OR ticker = $1)
		ORDER BY attempted_at DESC
	`
	args := []any{domain.NormalizeTicker(ticker)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var result []*domain.RecomputeAudit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// DeleteByTicker removes all entries of ticker.
func (s *AuditStore) DeleteByTicker(ctx context.Context, ticker string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM refresh_log WHERE ticker = $1`, domain.NormalizeTicker(ticker))
	if err != nil {
		return 0, fmt.Errorf("delete audit: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanAudit(row pgx.Row) (*domain.RecomputeAudit, error) {
	var a domain.RecomputeAudit
	var kind, status string
	err := row.Scan(
		&a.AuditID,
		&a.Ticker,
		&kind,
		&status,
		&a.Message,
		&a.LastSuccessDate,
		&a.AttemptedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Kind = domain.AuditKind(kind)
	a.Status = domain.Status(status)
	return &a, nil
}
