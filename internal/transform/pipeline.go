// Package transform materializes FX and unit conversions of a base ticker.
package transform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"commodity-lab/internal/align"
	"commodity-lab/internal/audit"
	"commodity-lab/internal/domain"
	"commodity-lab/internal/lookup"
	"commodity-lab/internal/observability"
	"commodity-lab/internal/storage"
)

// DefaultBackfillDays is how far before the last derived date a recompute restarts.
const DefaultBackfillDays = 7

// Result is the outcome of recomputing one transform.
type Result struct {
	TransformID   string
	DerivedTicker string
	Status        domain.Status
	Rows          int
	Message       string
	LastDate      *time.Time
}

// Pipeline recomputes transforms.
type Pipeline struct {
	transforms  storage.TransformStore
	derived     storage.DerivedSeriesStore
	instruments storage.InstrumentStore
	recipes     storage.RecipeStore
	auditStore  storage.AuditStore
	base        *align.Resolver
	fx          *align.Resolver
	audit       *audit.Recorder
	backfill    time.Duration
	metrics     *observability.Metrics
	log         zerolog.Logger
}

// Options for creating Pipeline.
type Options struct {
	// Required stores
	TransformStore     storage.TransformStore
	DerivedSeriesStore storage.DerivedSeriesStore
	PriceStore         storage.PriceStore

	// Optional
	InstrumentStore storage.InstrumentStore
	RecipeStore     storage.RecipeStore // rejects transforms shadowing a recipe
	AuditStore      storage.AuditStore
	Metrics         *observability.Metrics
	Logger          *zerolog.Logger

	// BackfillDays <= 0 means DefaultBackfillDays.
	BackfillDays int
	// PriceField selects the raw base column; FX always reads close.
	PriceField domain.PriceField
}

// NewPipeline creates a new transform Pipeline.
func NewPipeline(opts Options) *Pipeline {
	days := opts.BackfillDays
	if days <= 0 {
		days = DefaultBackfillDays
	}
	field := opts.PriceField
	if field == "" {
		field = domain.FieldClose
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Pipeline{
		transforms:  opts.TransformStore,
		derived:     opts.DerivedSeriesStore,
		instruments: opts.InstrumentStore,
		recipes:     opts.RecipeStore,
		auditStore:  opts.AuditStore,
		base:        align.NewResolver(opts.PriceStore, opts.DerivedSeriesStore, field),
		fx:          align.NewResolver(opts.PriceStore, opts.DerivedSeriesStore, domain.FieldClose),
		audit:       audit.NewRecorder(opts.AuditStore, domain.AuditTransform),
		backfill:    time.Duration(days) * 24 * time.Hour,
		metrics:     opts.Metrics,
		log:         logger.With().Str("component", "transform").Logger(),
	}
}

// Recompute materializes t incrementally: from the last derived date minus
// the backfill window, or from the first base observation when nothing has
// been written yet. Missing base or FX data is an empty outcome, not an
// error. The returned error is non-nil only when storage fails.
func (p *Pipeline) Recompute(ctx context.Context, t *domain.Transform) (Result, error) {
	tc := *t
	defaulted := tc.Normalize()
	return p.recompute(ctx, &tc, defaulted)
}

// RecomputeByID recomputes the transform with the given id, falling back to
// the transform producing that derived ticker.
func (p *Pipeline) RecomputeByID(ctx context.Context, id string) (Result, error) {
	t, err := p.lookup(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return p.Recompute(ctx, t)
}

// SaveAndCompute normalizes and persists t, registers its derived
// instrument, then recomputes it. Changing the formula of an existing
// transform purges its previously materialized rows.
func (p *Pipeline) SaveAndCompute(ctx context.Context, t *domain.Transform) (Result, error) {
	tc := *t
	defaulted := tc.Normalize()

	if tc.DerivedTicker == "" || tc.BaseTicker == "" {
		return Result{}, fmt.Errorf("%w: derived and base tickers are required", storage.ErrInvalidInput)
	}
	if tc.DerivedTicker == tc.BaseTicker || tc.DerivedTicker == tc.FxTicker {
		return Result{}, fmt.Errorf("%w: derived ticker %s must differ from its inputs", storage.ErrInvalidInput, tc.DerivedTicker)
	}
	if p.recipes != nil {
		_, err := p.recipes.GetByTicker(ctx, tc.DerivedTicker)
		if err == nil {
			return Result{}, fmt.Errorf("%w: %s is defined by a recipe", storage.ErrDuplicateKey, tc.DerivedTicker)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return Result{}, fmt.Errorf("check recipe %s: %w", tc.DerivedTicker, err)
		}
	}

	existing, err := p.transforms.GetByID(ctx, tc.TransformID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Result{}, fmt.Errorf("load transform %s: %w", tc.TransformID, err)
	}

	if err := p.transforms.Upsert(ctx, &tc); err != nil {
		return Result{}, fmt.Errorf("save transform %s: %w", tc.TransformID, err)
	}
	if p.instruments != nil {
		inst := &domain.Instrument{
			Ticker:    tc.DerivedTicker,
			Name:      tc.DerivedTicker,
			QuoteType: domain.CategoryDerived,
			Exchange:  domain.SourceLocal,
			Currency:  tc.TargetCurrency,
			Unit:      tc.TargetUnit,
			Category:  domain.CategoryDerived,
			Source:    domain.SourceLocal,
		}
		if err := p.instruments.Upsert(ctx, inst); err != nil {
			return Result{}, fmt.Errorf("ensure instrument %s: %w", tc.DerivedTicker, err)
		}
	}
	if existing != nil && !sameFormula(existing, &tc) {
		if _, err := p.derived.DeleteByTicker(ctx, existing.DerivedTicker); err != nil {
			return Result{}, fmt.Errorf("purge %s: %w", existing.DerivedTicker, err)
		}
	}

	return p.recompute(ctx, &tc, defaulted)
}

// Delete removes a transform. With deleteDerived its materialized rows and
// audit history are removed too.
func (p *Pipeline) Delete(ctx context.Context, id string, deleteDerived bool) error {
	t, err := p.lookup(ctx, id)
	if err != nil {
		return err
	}
	if err := p.transforms.Delete(ctx, t.TransformID); err != nil {
		return fmt.Errorf("delete transform %s: %w", t.TransformID, err)
	}
	if deleteDerived {
		if _, err := p.derived.DeleteByTicker(ctx, t.DerivedTicker); err != nil {
			return fmt.Errorf("purge %s: %w", t.DerivedTicker, err)
		}
		if p.auditStore != nil {
			if _, err := p.auditStore.DeleteByTicker(ctx, t.DerivedTicker); err != nil {
				return fmt.Errorf("purge audit %s: %w", t.DerivedTicker, err)
			}
		}
	}
	p.log.Info().Str("transform_id", t.TransformID).Bool("purged", deleteDerived).Msg("transform deleted")
	return nil
}

func (p *Pipeline) lookup(ctx context.Context, id string) (*domain.Transform, error) {
	t, err := p.transforms.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		t, err = p.transforms.GetByDerivedTicker(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", id, err)
	}
	return t, nil
}

func (p *Pipeline) recompute(ctx context.Context, t *domain.Transform, dividerDefaulted bool) (Result, error) {
	started := time.Now()
	res := Result{TransformID: t.TransformID, DerivedTicker: t.DerivedTicker}

	done := func(status domain.Status, msg string, last *time.Time, err error) (Result, error) {
		if dividerDefaulted {
			msg += "; " + ErrDivideByZeroConfig.Error()
		}
		res.Status = status
		res.Message = msg
		res.LastDate = last
		if _, aerr := p.audit.Record(ctx, t.DerivedTicker, status, msg, last); aerr != nil {
			p.log.Warn().Err(aerr).Str("ticker", t.DerivedTicker).Msg("audit write failed")
		}
		p.metrics.RecordRecompute(string(domain.AuditTransform), string(status), res.Rows, time.Since(started))
		ev := p.log.Info()
		if err != nil {
			ev = p.log.Warn().Err(err)
		}
		ev.Str("ticker", t.DerivedTicker).Str("status", string(status)).Int("rows", res.Rows).Msg("transform recomputed")
		return res, err
	}

	lastDerived, hasDerived, err := p.derived.LastDate(ctx, t.DerivedTicker)
	if err != nil {
		return done(domain.StatusError, err.Error(), nil, fmt.Errorf("last derived date %s: %w", t.DerivedTicker, err))
	}
	var since time.Time
	var prevSuccess *time.Time
	if hasDerived {
		since = lastDerived.Add(-p.backfill)
		prevSuccess = &lastDerived
	}

	base, err := p.base.Fetch(ctx, t.BaseTicker, since)
	if err != nil {
		return done(domain.StatusError, err.Error(), prevSuccess, err)
	}
	base = finite(base)
	if len(base) == 0 {
		msg := fmt.Sprintf("%v: base query empty: %s", ErrMissingBaseData, t.BaseTicker)
		if !hasDerived {
			msg = fmt.Sprintf("%v: no base data: %s", ErrMissingBaseData, t.BaseTicker)
		}
		return done(domain.StatusEmpty, msg, prevSuccess, nil)
	}

	dates := make([]time.Time, len(base))
	for i, b := range base {
		dates[i] = b.Date
	}

	var fx []float64
	if t.HasFx() {
		// The whole FX history is read so the window's first dates see the
		// last print before since rather than a later one.
		fxPoints, err := p.fx.Fetch(ctx, t.FxTicker, time.Time{})
		if err != nil {
			return done(domain.StatusError, err.Error(), prevSuccess, err)
		}
		fxPoints = finite(fxPoints)
		if len(fxPoints) == 0 {
			return done(domain.StatusEmpty, fmt.Sprintf("%v: fx empty: %s", ErrMissingFxData, t.FxTicker), prevSuccess, nil)
		}
		fx = lookup.AsOfBackward(dates, fxPoints)
	}

	out := make([]domain.Point, 0, len(base))
	for i, b := range base {
		v := b.Value
		if fx != nil {
			if t.FxOp == domain.FxDiv {
				v /= fx[i]
			} else {
				v *= fx[i]
			}
		}
		v = v * t.Multiplier / t.Divider
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, domain.Point{Date: b.Date, Value: v})
	}

	res.Rows, err = p.derived.UpsertBulk(ctx, t.DerivedTicker, out)
	if err != nil {
		res.Rows = 0
		return done(domain.StatusError, err.Error(), prevSuccess, fmt.Errorf("upsert %s: %w", t.DerivedTicker, err))
	}

	status := domain.StatusEmpty
	last := prevSuccess
	if res.Rows > 0 {
		status = domain.StatusSuccess
		d := out[len(out)-1].Date
		last = &d
	}
	return done(status, fmt.Sprintf("derived upsert %d rows", res.Rows), last, nil)
}

func finite(points []domain.Point) []domain.Point {
	out := points[:0:0]
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func sameFormula(a, b *domain.Transform) bool {
	return a.DerivedTicker == b.DerivedTicker &&
		a.BaseTicker == b.BaseTicker &&
		a.FxTicker == b.FxTicker &&
		a.FxOp == b.FxOp &&
		a.Multiplier == b.Multiplier &&
		a.Divider == b.Divider
}
