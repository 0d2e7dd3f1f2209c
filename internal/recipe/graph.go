// Package recipe resolves and recomputes expression-based derived tickers.
package recipe

import (
	"fmt"
	"sort"

	"commodity-lab/internal/domain"
)

type color uint8

const (
	white color = iota // unvisited
	grey               // on the DFS stack
	black              // finished
)

// Graph is the dependency graph of recipes. An edge runs from a recipe to
// each of its sources that is itself a recipe; dependents is the reverse map
// over every source, recipe or not.
type Graph struct {
	recipes    map[string]*domain.Recipe
	dependents map[string][]string // source -> recipes consuming it, sorted
}

// NewGraph indexes recipes by derived ticker. Later duplicates win.
func NewGraph(recipes []*domain.Recipe) *Graph {
	g := &Graph{
		recipes:    make(map[string]*domain.Recipe, len(recipes)),
		dependents: make(map[string][]string),
	}
	for _, r := range recipes {
		if r == nil {
			continue
		}
		key := domain.NormalizeTicker(r.DerivedTicker)
		if key == "" {
			continue
		}
		g.recipes[key] = r
	}
	for key, r := range g.recipes {
		for _, src := range domain.NormalizeTickers(r.SourceTickers) {
			g.dependents[src] = append(g.dependents[src], key)
		}
	}
	for src := range g.dependents {
		sort.Strings(g.dependents[src])
	}
	return g
}

// Recipe returns the recipe defining ticker.
func (g *Graph) Recipe(ticker string) (*domain.Recipe, bool) {
	r, ok := g.recipes[domain.NormalizeTicker(ticker)]
	return r, ok
}

// Len returns the number of recipes in the graph.
func (g *Graph) Len() int {
	return len(g.recipes)
}

// Dependents returns the recipes that consume ticker directly.
func (g *Graph) Dependents(ticker string) []string {
	deps := g.dependents[domain.NormalizeTicker(ticker)]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// Consumers returns the recipes that consume any of tickers directly, sorted.
func (g *Graph) Consumers(tickers []string) []string {
	seen := make(map[string]struct{})
	for _, t := range domain.NormalizeTickers(tickers) {
		for _, d := range g.dependents[t] {
			seen[d] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the recipes to recompute for target in dependency order:
// target's recipe ancestors, target itself and every recipe that transitively
// consumes it. A cycle anywhere in that set fails the whole resolution.
func (g *Graph) Resolve(target string) ([]string, error) {
	target = domain.NormalizeTicker(target)
	if _, ok := g.recipes[target]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, target)
	}

	// Upstream closure.
	nodes := make(map[string]struct{})
	colors := make(map[string]color)
	if err := g.visit(target, colors, nil, func(n string) { nodes[n] = struct{}{} }, nil); err != nil {
		return nil, err
	}

	// Downstream closure over the reverse map.
	for n := range g.downstream(target) {
		nodes[n] = struct{}{}
	}

	return g.order(nodes)
}

// Downstream returns every recipe that transitively consumes ticker, sorted.
func (g *Graph) Downstream(ticker string) []string {
	set := g.downstream(domain.NormalizeTicker(ticker))
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// downstream walks the reverse map from ticker.
func (g *Graph) downstream(ticker string) map[string]struct{} {
	seen := make(map[string]struct{})
	stack := []string{ticker}
	for len(stack) > 0 {
		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range g.dependents[curr] {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			stack = append(stack, child)
		}
	}
	return seen
}

// Order topologically sorts the given recipes (dependencies first), visiting
// them in sorted order. Tickers without a recipe are ignored.
func (g *Graph) Order(tickers []string) ([]string, error) {
	nodes := make(map[string]struct{}, len(tickers))
	for _, t := range domain.NormalizeTickers(tickers) {
		if _, ok := g.recipes[t]; ok {
			nodes[t] = struct{}{}
		}
	}
	return g.order(nodes)
}

func (g *Graph) order(nodes map[string]struct{}) ([]string, error) {
	keys := make([]string, 0, len(nodes))
	for n := range nodes {
		keys = append(keys, n)
	}
	sort.Strings(keys)

	ordered := make([]string, 0, len(keys))
	colors := make(map[string]color, len(keys))
	for _, n := range keys {
		err := g.visit(n, colors, nil, func(n string) { ordered = append(ordered, n) }, nodes)
		if err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// visit runs a three-colour DFS from n along recipe source edges, calling
// done in post-order. When within is non-nil, edges leaving it are skipped.
func (g *Graph) visit(n string, colors map[string]color, path []string, done func(string), within map[string]struct{}) error {
	switch colors[n] {
	case black:
		return nil
	case grey:
		return &CycleError{Path: cyclePath(path, n)}
	}

	r, ok := g.recipes[n]
	if !ok {
		colors[n] = black
		return nil
	}

	colors[n] = grey
	path = append(path, n)
	for _, src := range domain.NormalizeTickers(r.SourceTickers) {
		if _, isRecipe := g.recipes[src]; !isRecipe {
			continue
		}
		if within != nil {
			if _, ok := within[src]; !ok {
				continue
			}
		}
		if err := g.visit(src, colors, path, done, within); err != nil {
			return err
		}
	}
	colors[n] = black
	done(n)
	return nil
}

// cyclePath cuts the DFS stack at the first occurrence of n and closes the loop.
func cyclePath(stack []string, n string) []string {
	for i, s := range stack {
		if s == n {
			out := make([]string, 0, len(stack)-i+1)
			out = append(out, stack[i:]...)
			return append(out, n)
		}
	}
	return []string{n, n}
}
