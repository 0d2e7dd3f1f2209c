package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// Generator produces status reports from stored data.
type Generator struct {
	stores storage.Stores
	now    func() time.Time
}

// NewGenerator creates a new report generator.
func NewGenerator(stores storage.Stores) *Generator {
	return &Generator{
		stores: stores,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report over every catalogued ticker plus any recipe or
// transform output that has no catalog entry yet.
func (g *Generator) Generate(ctx context.Context) (*StatusReport, error) {
	instruments, err := g.stores.Instruments.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	recipes, err := g.stores.Recipes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	transforms, err := g.stores.Transforms.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list transforms: %w", err)
	}

	rows := make(map[string]*StatusRow, len(instruments))
	for _, inst := range instruments {
		rows[inst.Ticker] = &StatusRow{
			Ticker:   inst.Ticker,
			Kind:     KindRaw,
			Currency: inst.Currency,
			Unit:     inst.Unit,
			Watched:  inst.Watched,
		}
	}
	row := func(ticker string) *StatusRow {
		r, ok := rows[ticker]
		if !ok {
			r = &StatusRow{Ticker: ticker}
			rows[ticker] = r
		}
		return r
	}
	for _, rc := range recipes {
		r := row(rc.DerivedTicker)
		r.Kind = KindRecipe
		r.Definition = describeRecipe(rc)
	}
	for _, t := range transforms {
		r := row(t.DerivedTicker)
		r.Kind = KindTransform
		r.Definition = describeTransform(t)
	}

	report := &StatusReport{
		GeneratedAt: g.now(),
		Instruments: len(instruments),
		Recipes:     len(recipes),
		Transforms:  len(transforms),
	}
	for _, r := range rows {
		if err := g.fillSeries(ctx, r); err != nil {
			return nil, err
		}
		if err := g.fillAudit(ctx, r); err != nil {
			return nil, err
		}
		if r.LastStatus == domain.StatusError {
			report.Failing++
		}
		report.Rows = append(report.Rows, *r)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].Ticker < report.Rows[j].Ticker
	})
	return report, nil
}

func (g *Generator) fillSeries(ctx context.Context, r *StatusRow) error {
	var dates []time.Time
	if r.Kind == KindRaw {
		bars, err := g.stores.Prices.GetByTicker(ctx, r.Ticker)
		if err != nil {
			return fmt.Errorf("prices %s: %w", r.Ticker, err)
		}
		for _, b := range bars {
			dates = append(dates, b.Date)
		}
	} else {
		points, err := g.stores.Derived.GetByTicker(ctx, r.Ticker)
		if err != nil {
			return fmt.Errorf("derived %s: %w", r.Ticker, err)
		}
		for _, p := range points {
			dates = append(dates, p.Date)
		}
	}
	r.Points = len(dates)
	if len(dates) > 0 {
		first, last := dates[0], dates[len(dates)-1]
		r.FirstDate, r.LastDate = &first, &last
	}
	return nil
}

func (g *Generator) fillAudit(ctx context.Context, r *StatusRow) error {
	a, err := g.stores.Audit.Latest(ctx, r.Ticker)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("audit %s: %w", r.Ticker, err)
	}
	r.LastStatus = a.Status
	r.LastMessage = a.Message
	at := a.AttemptedAt
	r.AttemptedAt = &at
	return nil
}

func describeRecipe(r *domain.Recipe) string {
	return fmt.Sprintf("%s [%s]", r.Expression, strings.Join(r.SourceTickers, ", "))
}

func describeTransform(t *domain.Transform) string {
	var sb strings.Builder
	sb.WriteString(t.BaseTicker)
	if t.FxTicker != "" {
		op := "*"
		if t.FxOp == domain.FxDiv {
			op = "/"
		}
		fmt.Fprintf(&sb, " %s %s", op, t.FxTicker)
	}
	if t.Multiplier != 1 {
		fmt.Fprintf(&sb, " * %g", t.Multiplier)
	}
	if t.Divider != 1 {
		fmt.Fprintf(&sb, " / %g", t.Divider)
	}
	if !t.Enabled {
		sb.WriteString(" (disabled)")
	}
	return sb.String()
}
