package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"commodity-lab/internal/expr"
	"commodity-lab/internal/recipe"
)

type validateCmd struct {
	expression string
	list       bool
}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "check an expression against the allowed grammar" }
func (*validateCmd) Usage() string {
	return `derivedctl validate -expr <expression> | -functions

  Parses the expression and rejects anything outside the allowed
  operators, names and functions. Nothing is read from storage.
`
}

func (c *validateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.expression, "expr", "", "Expression to validate")
	f.BoolVar(&c.list, "functions", false, "List the allowed functions instead")
}

func (c *validateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.list {
		fmt.Println(strings.Join(expr.Allowed(), "\n"))
		return subcommands.ExitSuccess
	}
	if c.expression == "" {
		fmt.Fprintln(os.Stderr, "-expr is required")
		return subcommands.ExitUsageError
	}
	if err := expr.Validate(c.expression); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println("ok")
	return subcommands.ExitSuccess
}

type previewCmd struct {
	sources    string
	expression string
	tail       int
}

func (*previewCmd) Name() string     { return "preview" }
func (*previewCmd) Synopsis() string { return "evaluate an expression without saving it" }
func (*previewCmd) Usage() string {
	return `derivedctl preview -sources <T1,T2,...> -expr <expression> [-tail N]

  Aligns the sources on their common dates and prints the evaluated series.
  Sources bind to S1, S2, ... in order and to their sanitized ticker names.
`
}

func (c *previewCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sources, "sources", "", "Comma separated source tickers")
	f.StringVar(&c.expression, "expr", "", "Expression over the sources")
	f.IntVar(&c.tail, "tail", 0, "Only print the last N points (0 prints all)")
}

func (c *previewCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sources := splitList(c.sources)
	if len(sources) == 0 || c.expression == "" {
		fmt.Fprintln(os.Stderr, "-sources and -expr are required")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		points, err := a.engine.Preview(ctx, sources, c.expression)
		if err != nil {
			return err
		}
		if c.tail > 0 && len(points) > c.tail {
			points = points[len(points)-c.tail:]
		}
		for _, p := range points {
			fmt.Printf("%s\t%s\n", p.Date.Format(time.DateOnly), strconv.FormatFloat(p.Value, 'g', -1, 64))
		}
		return nil
	})
}

type recipeCmd struct {
	ticker     string
	sources    string
	expression string
}

func (*recipeCmd) Name() string     { return "recipe" }
func (*recipeCmd) Synopsis() string { return "save a derived recipe and compute its graph" }
func (*recipeCmd) Usage() string {
	return `derivedctl recipe -ticker <DERIVED> -sources <T1,T2,...> -expr <expression>

  Validates the expression, rejects cycles, stores the recipe and
  recomputes it together with every recipe downstream of it.
`
}

func (c *recipeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "ticker", "", "Derived ticker to define")
	f.StringVar(&c.sources, "sources", "", "Comma separated source tickers")
	f.StringVar(&c.expression, "expr", "", "Expression over the sources")
}

func (c *recipeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ticker == "" || c.sources == "" || c.expression == "" {
		fmt.Fprintln(os.Stderr, "-ticker, -sources and -expr are required")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		results, err := a.engine.SaveAndCompute(ctx, c.ticker, splitList(c.sources), c.expression)
		printRecipeResults(results)
		return err
	})
}

type recomputeCmd struct{}

func (*recomputeCmd) Name() string     { return "recompute" }
func (*recomputeCmd) Synopsis() string { return "recompute recipe graphs of the given derived tickers" }
func (*recomputeCmd) Usage() string {
	return `derivedctl recompute <DERIVED> [<DERIVED> ...]

  Recomputes each target and everything downstream of it. Independent
  targets run in parallel, bounded by engine.max_parallel.
`
}

func (*recomputeCmd) SetFlags(*flag.FlagSet) {}

func (*recomputeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one derived ticker is required")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		results, err := a.orchestrator.RecomputeTargets(ctx, f.Args())
		printRecipeResults(results)
		return err
	})
}

type recipeDeleteCmd struct {
	ticker string
	keep   bool
}

func (*recipeDeleteCmd) Name() string     { return "recipe-delete" }
func (*recipeDeleteCmd) Synopsis() string { return "delete a derived recipe" }
func (*recipeDeleteCmd) Usage() string {
	return `derivedctl recipe-delete -ticker <DERIVED> [-keep-series]
`
}

func (c *recipeDeleteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "ticker", "", "Derived ticker whose recipe is removed")
	f.BoolVar(&c.keep, "keep-series", false, "Keep the materialized series")
}

func (c *recipeDeleteCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ticker == "" {
		fmt.Fprintln(os.Stderr, "-ticker is required")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		return a.engine.DeleteRecipe(ctx, c.ticker, !c.keep)
	})
}

func printRecipeResults(results []recipe.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tSTATUS\tROWS\tLAST\tMESSAGE")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.Ticker, r.Status, r.Rows, formatDay(r.LastDate), r.Message)
	}
	w.Flush()
}

func formatDay(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
