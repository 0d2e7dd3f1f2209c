package recipe

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
	"commodity-lab/internal/expr"
	"commodity-lab/internal/observability"
	"commodity-lab/internal/storage"
)

// Result is the outcome of recomputing one recipe.
type Result struct {
	Ticker   string
	Rows     int
	Status   domain.Status
	Message  string
	LastDate *time.Time
}

// Engine previews, saves and recomputes recipes.
type Engine struct {
	recipes     storage.RecipeStore
	derived     storage.DerivedSeriesStore
	instruments storage.InstrumentStore
	aligner     *align.Aligner
	audit       *audit.Recorder
	metrics     *observability.Metrics
	log         zerolog.Logger
}

// Options for creating Engine.
type Options struct {
	// Required stores
	RecipeStore        storage.RecipeStore
	DerivedSeriesStore storage.DerivedSeriesStore

	// Source reads inputs. Defaults to a raw/derived resolver over
	// PriceStore and DerivedSeriesStore.
	Source     align.Fetcher
	PriceStore storage.PriceStore
	PriceField domain.PriceField

	// Optional
	InstrumentStore storage.InstrumentStore
	AuditStore      storage.AuditStore
	Metrics         *observability.Metrics
	Logger          *zerolog.Logger
}

// NewEngine creates a new recipe Engine.
func NewEngine(opts Options) *Engine {
	src := opts.Source
	if src == nil {
		src = align.NewResolver(opts.PriceStore, opts.DerivedSeriesStore, opts.PriceField)
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Engine{
		recipes:     opts.RecipeStore,
		derived:     opts.DerivedSeriesStore,
		instruments: opts.InstrumentStore,
		aligner:     align.NewAligner(src),
		audit:       audit.NewRecorder(opts.AuditStore, domain.AuditRecipe),
		metrics:     opts.Metrics,
		log:         logger.With().Str("component", "recipe").Logger(),
	}
}

// Preview evaluates expression over sources without persisting anything.
// Rows whose result is NaN or infinite are dropped; an empty result is not
// an error.
func (e *Engine) Preview(ctx context.Context, sources []string, expression string) ([]domain.Point, error) {
	prog, err := e.compile(expression)
	if err != nil {
		return nil, err
	}
	return e.evaluate(ctx, sources, prog)
}

// SaveAndCompute validates and persists a recipe, then recomputes its graph.
// Self references and cycles through stored recipes are rejected before
// anything is written. Replacing the expression or sources of an existing
// recipe purges its previously materialized rows.
func (e *Engine) SaveAndCompute(ctx context.Context, derivedTicker string, sources []string, expression string) ([]Result, error) {
	r := &domain.Recipe{
		DerivedTicker: derivedTicker,
		SourceTickers: sources,
		Expression:    expression,
	}
	r.Normalize()
	if r.DerivedTicker == "" {
		return nil, fmt.Errorf("%w: derived ticker is required", storage.ErrInvalidInput)
	}
	if len(r.SourceTickers) == 0 {
		return nil, ErrNoSources
	}

	prog, err := e.compile(r.Expression)
	if err != nil {
		return nil, err
	}

	stored, err := e.recipes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	var existing *domain.Recipe
	candidate := make([]*domain.Recipe, 0, len(stored)+1)
	for _, s := range stored {
		if domain.NormalizeTicker(s.DerivedTicker) == r.DerivedTicker {
			existing = s
			continue
		}
		candidate = append(candidate, s)
	}
	candidate = append(candidate, r)
	if _, err := NewGraph(candidate).Resolve(r.DerivedTicker); err != nil {
		e.metrics.RecordCycle()
		return nil, err
	}

	// Surface alignment and evaluation errors before persisting.
	if _, err := e.evaluate(ctx, r.SourceTickers, prog); err != nil {
		return nil, err
	}

	if err := e.recipes.Upsert(ctx, r); err != nil {
		return nil, fmt.Errorf("save recipe %s: %w", r.DerivedTicker, err)
	}
	if e.instruments != nil {
		inst := &domain.Instrument{
			Ticker:    r.DerivedTicker,
			Name:      r.DerivedTicker,
			QuoteType: domain.CategoryDerived,
			Exchange:  domain.SourceLocal,
			Category:  domain.CategoryDerived,
			Source:    domain.SourceLocal,
		}
		if err := e.instruments.Upsert(ctx, inst); err != nil {
			return nil, fmt.Errorf("ensure instrument %s: %w", r.DerivedTicker, err)
		}
	}
	if existing != nil && !sameDefinition(existing, r) {
		n, err := e.derived.DeleteByTicker(ctx, r.DerivedTicker)
		if err != nil {
			return nil, fmt.Errorf("purge %s: %w", r.DerivedTicker, err)
		}
		e.log.Debug().Str("ticker", r.DerivedTicker).Int("rows", n).Msg("purged replaced recipe output")
	}

	return e.RecomputeGraph(ctx, r.DerivedTicker)
}

// RecomputeGraph recomputes target together with its recipe ancestors and
// every recipe built on top of it, dependencies first. All expressions are
// validated before the first write. A failing step stops the batch: earlier
// writes are kept and the results so far are returned with the error.
func (e *Engine) RecomputeGraph(ctx context.Context, target string) ([]Result, error) {
	target = domain.NormalizeTicker(target)
	if target == "" {
		return nil, fmt.Errorf("%w: target ticker is required", storage.ErrInvalidInput)
	}

	stored, err := e.recipes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	g := NewGraph(stored)

	order, err := g.Resolve(target)
	if err != nil {
		var cycle *CycleError
		if errors.As(err, &cycle) {
			e.metrics.RecordCycle()
			e.record(ctx, target, domain.StatusError, err.Error(), nil)
		}
		return nil, err
	}

	programs := make(map[string]*expr.Program, len(order))
	for _, tk := range order {
		r, _ := g.Recipe(tk)
		if len(domain.NormalizeTickers(r.SourceTickers)) == 0 {
			e.record(ctx, tk, domain.StatusError, ErrNoSources.Error(), nil)
			return nil, fmt.Errorf("validate %s: %w", tk, ErrNoSources)
		}
		prog, err := e.compile(r.Expression)
		if err != nil {
			e.record(ctx, tk, domain.StatusError, err.Error(), nil)
			return nil, fmt.Errorf("validate %s: %w", tk, err)
		}
		programs[tk] = prog
	}

	e.log.Debug().Str("target", target).Strs("order", order).Msg("recomputing recipe graph")

	results := make([]Result, 0, len(order))
	for _, tk := range order {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r, _ := g.Recipe(tk)
		res, err := e.recompute(ctx, tk, r.SourceTickers, programs[tk])
		results = append(results, res)
		if err != nil {
			return results, fmt.Errorf("recompute %s: %w", tk, err)
		}
	}
	return results, nil
}

// DeleteRecipe removes the recipe of derivedTicker, optionally purging its
// materialized rows. Recipes consuming it are left in place.
func (e *Engine) DeleteRecipe(ctx context.Context, derivedTicker string, purge bool) error {
	tk := domain.NormalizeTicker(derivedTicker)
	if err := e.recipes.Delete(ctx, tk); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRecipeNotFound, tk)
		}
		return fmt.Errorf("delete recipe %s: %w", tk, err)
	}
	if purge {
		if _, err := e.derived.DeleteByTicker(ctx, tk); err != nil {
			return fmt.Errorf("purge %s: %w", tk, err)
		}
	}
	e.log.Info().Str("ticker", tk).Bool("purged", purge).Msg("recipe deleted")
	return nil
}

// recompute evaluates and persists one recipe and audits the outcome.
func (e *Engine) recompute(ctx context.Context, ticker string, sources []string, prog *expr.Program) (Result, error) {
	started := time.Now()
	res := Result{Ticker: ticker}

	points, err := e.evaluate(ctx, sources, prog)
	if err == nil {
		res.Rows, err = e.derived.UpsertBulk(ctx, ticker, points)
	}
	if err != nil {
		res.Status = domain.StatusError
		res.Message = err.Error()
		e.record(ctx, ticker, res.Status, res.Message, nil)
		e.metrics.RecordRecompute(string(domain.AuditRecipe), string(res.Status), 0, time.Since(started))
		e.log.Warn().Err(err).Str("ticker", ticker).Msg("recipe recompute failed")
		return res, err
	}

	res.Status = domain.StatusEmpty
	if res.Rows > 0 {
		res.Status = domain.StatusSuccess
		last := points[len(points)-1].Date
		res.LastDate = &last
	}
	res.Message = fmt.Sprintf("derived upsert %d rows", res.Rows)
	e.record(ctx, ticker, res.Status, res.Message, res.LastDate)
	e.metrics.RecordRecompute(string(domain.AuditRecipe), string(res.Status), res.Rows, time.Since(started))
	e.log.Info().Str("ticker", ticker).Str("status", string(res.Status)).Int("rows", res.Rows).Msg("recipe recomputed")
	return res, nil
}

func (e *Engine) evaluate(ctx context.Context, sources []string, prog *expr.Program) ([]domain.Point, error) {
	if len(domain.CleanTickers(sources)) == 0 {
		return nil, ErrNoSources
	}
	frame, err := e.aligner.Align(ctx, sources)
	if err != nil {
		return nil, err
	}
	values, err := prog.Eval(expr.Env(frame.Bindings()), frame.Len())
	if err != nil {
		return nil, err
	}

	points := make([]domain.Point, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		points = append(points, domain.Point{Date: frame.Dates[i], Value: v})
	}
	return points, nil
}

func (e *Engine) compile(expression string) (*expr.Program, error) {
	prog, err := expr.Compile(expression)
	if err != nil {
		e.metrics.RecordValidationFailure(failureReason(err))
		return nil, err
	}
	return prog, nil
}

func (e *Engine) record(ctx context.Context, ticker string, status domain.Status, msg string, last *time.Time) {
	if _, err := e.audit.Record(ctx, ticker, status, msg, last); err != nil {
		e.log.Warn().Err(err).Str("ticker", ticker).Msg("audit write failed")
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, expr.ErrEmptyExpression):
		return "empty"
	case errors.Is(err, expr.ErrSyntax):
		return "syntax"
	case errors.Is(err, expr.ErrDisallowedSyntax):
		return "disallowed_syntax"
	case errors.Is(err, expr.ErrDisallowedFunction):
		return "disallowed_function"
	default:
		return "other"
	}
}

func sameDefinition(a, b *domain.Recipe) bool {
	if a.Expression != b.Expression {
		return false
	}
	as := domain.CleanTickers(a.SourceTickers)
	bs := domain.CleanTickers(b.SourceTickers)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
