// Package orchestrator keeps derived tickers fresh when their inputs change.
// It coordinates: raw refresh → transforms → recipe graphs
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/observability"
	"commodity-lab/internal/recipe"
	"commodity-lab/internal/storage"
	"commodity-lab/internal/transform"
)

// DefaultMaxParallel bounds concurrent recipe targets.
const DefaultMaxParallel = 4

// Orchestrator fans input changes out to the transforms and recipes that consume them.
type Orchestrator struct {
	// Stores
	transformStore storage.TransformStore
	recipeStore    storage.RecipeStore

	// Engines
	pipeline *transform.Pipeline
	engine   *recipe.Engine

	locks       *TickerLocks
	maxParallel int
	metrics     *observability.Metrics
	logger      zerolog.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	TransformStore storage.TransformStore
	RecipeStore    storage.RecipeStore

	// Required engines
	Pipeline *transform.Pipeline
	Engine   *recipe.Engine

	// Optional
	Locks       *TickerLocks // shared with other writers; created when nil
	MaxParallel int          // <= 0 means DefaultMaxParallel
	Metrics     *observability.Metrics
	Logger      *zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	locks := opts.Locks
	if locks == nil {
		locks = NewTickerLocks()
	}
	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Orchestrator{
		transformStore: opts.TransformStore,
		recipeStore:    opts.RecipeStore,
		pipeline:       opts.Pipeline,
		engine:         opts.Engine,
		locks:          locks,
		maxParallel:    maxParallel,
		metrics:        opts.Metrics,
		logger:         logger.With().Str("component", "orchestrator").Logger(),
	}
}

// RefreshOutcome is what raw ingestion reports for one ticker.
type RefreshOutcome struct {
	Ticker string
	Status domain.Status
	Rows   int
}

// UpdateResult contains results from one propagation run.
type UpdateResult struct {
	Changed    []string
	Transforms []transform.Result
	Recipes    []recipe.Result
	Errors     []string
}

// UpdateDerivedForTickers recomputes every enabled transform whose base or
// FX ticker is in changed. A failing transform never stops the others; the
// storage errors met along the way are joined into the returned error.
func (o *Orchestrator) UpdateDerivedForTickers(ctx context.Context, changed []string) ([]transform.Result, error) {
	changed = domain.NormalizeTickers(changed)
	if len(changed) == 0 {
		return nil, nil
	}

	all, err := o.transformStore.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list transforms: %w", err)
	}

	var affected []*domain.Transform
	for _, t := range all {
		for _, c := range changed {
			if t.Uses(c) {
				affected = append(affected, t)
				break
			}
		}
	}
	o.metrics.RecordFanOut(len(affected))
	o.log().Int("changed", len(changed)).Int("affected", len(affected)).Msg("updating transforms")

	results := make([]transform.Result, 0, len(affected))
	var errs []error
	for _, t := range affected {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		unlock := o.locks.Lock(t.DerivedTicker, t.BaseTicker, t.FxTicker)
		res, err := o.pipeline.Recompute(ctx, t)
		unlock()

		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("transform %s: %w", t.TransformID, err))
		}
	}
	return results, errors.Join(errs...)
}

// RefreshRecipes recomputes the recipe graphs of every recipe that directly
// consumes a changed ticker. Roots already covered by another root's
// downstream closure are skipped.
func (o *Orchestrator) RefreshRecipes(ctx context.Context, changed []string) ([]recipe.Result, error) {
	changed = domain.NormalizeTickers(changed)
	if len(changed) == 0 {
		return nil, nil
	}

	recipes, err := o.recipeStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	g := recipe.NewGraph(recipes)
	roots := g.Consumers(changed)

	covered := make(map[string]bool)
	cyclic := make(map[string]bool)
	for _, root := range roots {
		for _, n := range g.Downstream(root) {
			if n == root {
				cyclic[root] = true // kept so the cycle error surfaces
				continue
			}
			covered[n] = true
		}
	}
	targets := make([]string, 0, len(roots))
	for _, root := range roots {
		if !covered[root] || cyclic[root] {
			targets = append(targets, root)
		}
	}
	o.metrics.RecordFanOut(len(targets))

	return o.RecomputeTargets(ctx, targets)
}

// RecomputeTargets recomputes the recipe graph of each target. Independent
// targets run concurrently, bounded by MaxParallel; targets whose graphs
// overlap are serialised through the ticker locks. Results keep target order.
func (o *Orchestrator) RecomputeTargets(ctx context.Context, targets []string) ([]recipe.Result, error) {
	targets = domain.NormalizeTickers(targets)
	if len(targets) == 0 {
		return nil, nil
	}

	recipes, err := o.recipeStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	g := recipe.NewGraph(recipes)

	perTarget := make([][]recipe.Result, len(targets))
	var (
		mu   sync.Mutex
		errs []error
	)

	var eg errgroup.Group
	eg.SetLimit(o.maxParallel)
	for i, target := range targets {
		i, target := i, target
		eg.Go(func() error {
			unlock := o.locks.Lock(lockSet(g, target)...)
			defer unlock()

			res, err := o.engine.RecomputeGraph(ctx, target)
			perTarget[i] = res
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("recipe %s: %w", target, err))
				mu.Unlock()
				o.logger.Warn().Err(err).Str("target", target).Msg("recipe graph failed")
			}
			return nil
		})
	}
	_ = eg.Wait()

	var results []recipe.Result
	for _, res := range perTarget {
		results = append(results, res...)
	}
	return results, errors.Join(errs...)
}

// OnRawRefresh propagates a raw refresh batch: only tickers refreshed with
// new rows count as changed, transforms run first and recipes then see both
// the raw changes and the transform outputs that were written.
func (o *Orchestrator) OnRawRefresh(ctx context.Context, outcomes []RefreshOutcome) (*UpdateResult, error) {
	result := &UpdateResult{}

	var changed []string
	for _, r := range outcomes {
		if r.Status == domain.StatusSuccess && r.Rows > 0 {
			changed = append(changed, r.Ticker)
		}
	}
	result.Changed = domain.NormalizeTickers(changed)
	if len(result.Changed) == 0 {
		return result, nil
	}

	o.log().Strs("changed", result.Changed).Msg("propagating raw refresh")

	tr, err := o.UpdateDerivedForTickers(ctx, result.Changed)
	result.Transforms = tr
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	downstream := append([]string(nil), result.Changed...)
	for _, r := range tr {
		if r.Status == domain.StatusSuccess {
			downstream = append(downstream, r.DerivedTicker)
		}
	}

	rr, err := o.RefreshRecipes(ctx, downstream)
	result.Recipes = rr
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	o.log().Int("transforms", len(result.Transforms)).Int("recipes", len(result.Recipes)).
		Int("errors", len(result.Errors)).Msg("raw refresh propagated")
	return result, nil
}

// lockSet is every ticker a target's batch writes or reads.
func lockSet(g *recipe.Graph, target string) []string {
	order, err := g.Resolve(target)
	if err != nil {
		return []string{target}
	}
	set := append([]string(nil), order...)
	for _, n := range order {
		if r, ok := g.Recipe(n); ok {
			set = append(set, r.SourceTickers...)
		}
	}
	return set
}

func (o *Orchestrator) log() *zerolog.Event {
	return o.logger.Info()
}
