package storage

import (
	"context"
	"time"

	"commodity-lab/internal/domain"
)

// InstrumentStore provides access to the instruments catalog.
type InstrumentStore interface {
	// Upsert inserts an instrument or merges metadata into the existing row.
	// Empty metadata fields never overwrite stored values. Watched is only
	// changed through SetWatched.
	Upsert(ctx context.Context, inst *domain.Instrument) error

	// GetByTicker retrieves an instrument. Returns ErrNotFound if not exists.
	GetByTicker(ctx context.Context, ticker string) (*domain.Instrument, error)

	// List returns instruments ordered by ticker, optionally only watched ones.
	List(ctx context.Context, onlyWatched bool) ([]*domain.Instrument, error)

	// SetWatched sets the watch flag. Returns ErrNotFound if not exists.
	SetWatched(ctx context.Context, ticker string, watched bool) error

	// Delete removes an instrument. Deleting a missing ticker is not an error.
	Delete(ctx context.Context, ticker string) error
}

// PriceStore provides access to raw daily bars (prices_daily).
type PriceStore interface {
	// UpsertBulk writes bars keyed by (ticker, date); later writes win.
	// Returns the number of rows written.
	UpsertBulk(ctx context.Context, bars []*domain.Bar) (int, error)

	// GetByTicker retrieves all bars for a ticker, ordered by date ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.Bar, error)

	// GetSince retrieves bars with date >= start, ordered by date ASC.
	GetSince(ctx context.Context, ticker string, start time.Time) ([]*domain.Bar, error)

	// DeleteByTicker removes all bars of ticker and returns the number removed.
	DeleteByTicker(ctx context.Context, ticker string) (int, error)
}

// DerivedSeriesStore provides access to materialized derived values (derived_daily).
type DerivedSeriesStore interface {
	// UpsertBulk writes points for ticker keyed by (ticker, date); later writes win.
	// Returns the number of rows written.
	UpsertBulk(ctx context.Context, ticker string, points []domain.Point) (int, error)

	// GetByTicker retrieves the whole series, ordered by date ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.SeriesPoint, error)

	// GetSince retrieves points with date >= start, ordered by date ASC.
	GetSince(ctx context.Context, ticker string, start time.Time) ([]*domain.SeriesPoint, error)

	// LastDate returns the latest date stored for ticker; false if none.
	LastDate(ctx context.Context, ticker string) (time.Time, bool, error)

	// DeleteByTicker removes the series and returns the number of rows removed.
	DeleteByTicker(ctx context.Context, ticker string) (int, error)
}

// RecipeStore provides access to derived_recipes.
type RecipeStore interface {
	// Upsert inserts or fully replaces the recipe of r.DerivedTicker.
	Upsert(ctx context.Context, r *domain.Recipe) error

	// GetByTicker retrieves the recipe of a derived ticker. Returns ErrNotFound if not exists.
	GetByTicker(ctx context.Context, derivedTicker string) (*domain.Recipe, error)

	// List returns all recipes ordered by derived ticker.
	List(ctx context.Context) ([]*domain.Recipe, error)

	// Delete removes a recipe. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, derivedTicker string) error

	// DeleteReferencing removes every recipe that defines ticker or lists it
	// as a source. Returns the derived tickers removed, sorted.
	DeleteReferencing(ctx context.Context, ticker string) ([]string, error)
}

// TransformStore provides access to transforms.
type TransformStore interface {
	// Upsert inserts or replaces a transform keyed by TransformID.
	// Returns ErrDuplicateKey if another transform already defines the same derived ticker.
	Upsert(ctx context.Context, t *domain.Transform) error

	// GetByID retrieves a transform. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, transformID string) (*domain.Transform, error)

	// GetByDerivedTicker retrieves the transform producing ticker. Returns ErrNotFound if not exists.
	GetByDerivedTicker(ctx context.Context, ticker string) (*domain.Transform, error)

	// List returns transforms ordered by derived ticker, optionally only enabled ones.
	List(ctx context.Context, enabledOnly bool) ([]*domain.Transform, error)

	// Delete removes a transform. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, transformID string) error

	// DeleteReferencing removes every transform whose derived, base or FX
	// ticker is ticker. Returns the transform ids removed, sorted.
	DeleteReferencing(ctx context.Context, ticker string) ([]string, error)
}

// AuditStore provides access to the recompute audit log (refresh_log).
type AuditStore interface {
	// Record appends an audit entry. AuditID and AttemptedAt must be set.
	Record(ctx context.Context, a *domain.RecomputeAudit) error

	// Latest returns the most recent entry for ticker. Returns ErrNotFound if none.
	Latest(ctx context.Context, ticker string) (*domain.RecomputeAudit, error)

	// List returns entries newest first. An empty ticker lists all tickers;
	// limit <= 0 means no limit.
	List(ctx context.Context, ticker string, limit int) ([]*domain.RecomputeAudit, error)

	// DeleteByTicker removes all entries of ticker and returns the number removed.
	DeleteByTicker(ctx context.Context, ticker string) (int, error)
}
