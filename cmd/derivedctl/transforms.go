package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/transform"
)

type transformCmd struct {
	id         string
	derived    string
	base       string
	fx         string
	op         string
	multiplier float64
	divider    float64
	currency   string
	unit       string
	notes      string
	disabled   bool
}

func (*transformCmd) Name() string     { return "transform" }
func (*transformCmd) Synopsis() string { return "save an FX/unit transform and compute it" }
func (*transformCmd) Usage() string {
	return `derivedctl transform -derived <T> -base <T> [-fx <T> -op mul|div] [-mul X] [-div Y]
                     [-currency CCY] [-unit U] [-id ID] [-notes TEXT] [-disabled]

  derived = (base op fx) * mul / div, with fx matched as of each base date.
`
}

func (c *transformCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Transform id (defaults to the derived ticker)")
	f.StringVar(&c.derived, "derived", "", "Derived ticker to produce")
	f.StringVar(&c.base, "base", "", "Base ticker")
	f.StringVar(&c.fx, "fx", "", "FX ticker (optional)")
	f.StringVar(&c.op, "op", "mul", "FX operation: mul or div")
	f.Float64Var(&c.multiplier, "mul", 1, "Multiplier")
	f.Float64Var(&c.divider, "div", 1, "Divider (zero is replaced by 1)")
	f.StringVar(&c.currency, "currency", "", "Target currency of the derived instrument")
	f.StringVar(&c.unit, "unit", "", "Target unit of the derived instrument")
	f.StringVar(&c.notes, "notes", "", "Free text notes")
	f.BoolVar(&c.disabled, "disabled", false, "Save the transform disabled")
}

func (c *transformCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.derived == "" || c.base == "" {
		fmt.Fprintln(os.Stderr, "-derived and -base are required")
		return subcommands.ExitUsageError
	}
	t := &domain.Transform{
		TransformID:    c.id,
		DerivedTicker:  c.derived,
		BaseTicker:     c.base,
		FxTicker:       c.fx,
		FxOp:           domain.FxOp(c.op),
		TargetCurrency: c.currency,
		TargetUnit:     c.unit,
		Multiplier:     c.multiplier,
		Divider:        c.divider,
		Enabled:        !c.disabled,
		Notes:          c.notes,
	}
	return run(ctx, func(a *app) error {
		res, err := a.pipeline.SaveAndCompute(ctx, t)
		if err != nil {
			return err
		}
		printTransformResults([]transform.Result{res})
		return nil
	})
}

type transformRecomputeCmd struct {
	all bool
}

func (*transformRecomputeCmd) Name() string     { return "transform-recompute" }
func (*transformRecomputeCmd) Synopsis() string { return "recompute transforms by id or derived ticker" }
func (*transformRecomputeCmd) Usage() string {
	return `derivedctl transform-recompute <ID|DERIVED> [...] | -all
`
}

func (c *transformRecomputeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "Recompute every enabled transform")
}

func (c *transformRecomputeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.all && f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "give transform ids or -all")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		var (
			results []transform.Result
			errs    []error
		)
		if c.all {
			list, err := a.stores.Transforms.List(ctx, true)
			if err != nil {
				return err
			}
			for _, t := range list {
				res, err := a.pipeline.Recompute(ctx, t)
				results = append(results, res)
				if err != nil {
					errs = append(errs, err)
				}
			}
		}
		for _, id := range f.Args() {
			res, err := a.pipeline.RecomputeByID(ctx, id)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				continue
			}
			results = append(results, res)
		}
		printTransformResults(results)
		return errors.Join(errs...)
	})
}

type transformDeleteCmd struct {
	keep bool
}

func (*transformDeleteCmd) Name() string     { return "transform-delete" }
func (*transformDeleteCmd) Synopsis() string { return "delete transforms by id or derived ticker" }
func (*transformDeleteCmd) Usage() string {
	return `derivedctl transform-delete [-keep-series] <ID|DERIVED> [...]
`
}

func (c *transformDeleteCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.keep, "keep-series", false, "Keep the materialized series and its audit log")
}

func (c *transformDeleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one transform id is required")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		for _, id := range f.Args() {
			if err := a.pipeline.Delete(ctx, id, !c.keep); err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			fmt.Println("deleted", id)
		}
		return nil
	})
}

func printTransformResults(results []transform.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDERIVED\tSTATUS\tROWS\tLAST\tMESSAGE")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.TransformID, r.DerivedTicker, r.Status, r.Rows, formatDay(r.LastDate), r.Message)
	}
	w.Flush()
}
