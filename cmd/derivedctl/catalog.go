package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/subcommands"

	"commodity-lab/internal/catalog"
	"commodity-lab/internal/domain"
	"commodity-lab/internal/orchestrator"
)

type updateCmd struct{}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "propagate changes of raw tickers to derived series" }
func (*updateCmd) Usage() string {
	return `derivedctl update <TICKER> [<TICKER> ...]

  Treats every named ticker as refreshed: recomputes the transforms that
  read it, then the recipe graphs consuming it or those transform outputs.
`
}

func (*updateCmd) SetFlags(*flag.FlagSet) {}

func (*updateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one ticker is required")
		return subcommands.ExitUsageError
	}
	outcomes := make([]orchestrator.RefreshOutcome, 0, f.NArg())
	for _, tk := range f.Args() {
		outcomes = append(outcomes, orchestrator.RefreshOutcome{Ticker: tk, Status: domain.StatusSuccess, Rows: 1})
	}
	return run(ctx, func(a *app) error {
		return propagate(ctx, a, outcomes)
	})
}

type loadPricesCmd struct {
	file      string
	ticker    string
	propagate bool
}

func (*loadPricesCmd) Name() string     { return "load-prices" }
func (*loadPricesCmd) Synopsis() string { return "import raw daily bars from CSV" }
func (*loadPricesCmd) Usage() string {
	return `derivedctl load-prices -file <bars.csv> [-ticker T] [-propagate]

  The CSV header must include date and may include ticker, open, high,
  low, close, adj_close and volume. Without a ticker column -ticker names
  the series. With -propagate derived series are updated afterwards.
`
}

func (c *loadPricesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "CSV file to import")
	f.StringVar(&c.ticker, "ticker", "", "Ticker for files without a ticker column")
	f.BoolVar(&c.propagate, "propagate", false, "Update derived series of the loaded tickers")
}

func (c *loadPricesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		rows, err := a.loadPrices(ctx, c.file, c.ticker)
		if err != nil {
			return err
		}
		tickers := make([]string, 0, len(rows))
		for tk := range rows {
			tickers = append(tickers, tk)
		}
		sort.Strings(tickers)

		outcomes := make([]orchestrator.RefreshOutcome, 0, len(tickers))
		for _, tk := range tickers {
			fmt.Printf("%s\t%d rows\n", tk, rows[tk])
			outcomes = append(outcomes, orchestrator.RefreshOutcome{Ticker: tk, Status: domain.StatusSuccess, Rows: rows[tk]})
		}
		if !c.propagate {
			return nil
		}
		return propagate(ctx, a, outcomes)
	})
}

func propagate(ctx context.Context, a *app, outcomes []orchestrator.RefreshOutcome) error {
	res, err := a.orchestrator.OnRawRefresh(ctx, outcomes)
	if err != nil {
		return err
	}
	if len(res.Transforms) > 0 {
		printTransformResults(res.Transforms)
	}
	if len(res.Recipes) > 0 {
		printRecipeResults(res.Recipes)
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("update finished with errors:\n  %s", strings.Join(res.Errors, "\n  "))
	}
	return nil
}

type deleteCmd struct {
	prices bool
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete instruments and everything derived from them" }
func (*deleteCmd) Usage() string {
	return `derivedctl delete [-prices] <TICKER> [<TICKER> ...]

  Removes the instruments, the recipes and transforms that define or read
  them, and recursively the derived tickers those produced.
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.prices, "prices", false, "Also delete raw prices of the named tickers")
}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one ticker is required")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		res, err := a.catalog.DeleteTickers(ctx, f.Args(), catalog.DeleteOptions{DeletePrices: c.prices})
		if err != nil {
			return err
		}
		fmt.Printf("tickers:     %s\n", strings.Join(res.Tickers, ", "))
		fmt.Printf("recipes:     %s\n", strings.Join(res.Recipes, ", "))
		fmt.Printf("transforms:  %s\n", strings.Join(res.Transforms, ", "))
		fmt.Printf("price rows:  %d\nseries rows: %d\naudit rows:  %d\n", res.PriceRows, res.DerivedRows, res.AuditRows)
		return nil
	})
}

type metaCmd struct {
	ticker   string
	currency string
	unit     string
	category string
}

func (*metaCmd) Name() string     { return "meta" }
func (*metaCmd) Synopsis() string { return "edit currency, unit or category of an instrument" }
func (*metaCmd) Usage() string {
	return `derivedctl meta -ticker T [-currency CCY] [-unit U] [-category C]

  Empty values leave the stored metadata unchanged.
`
}

func (c *metaCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "ticker", "", "Instrument ticker")
	f.StringVar(&c.currency, "currency", "", "Currency code")
	f.StringVar(&c.unit, "unit", "", "Unit")
	f.StringVar(&c.category, "category", "", "Category")
}

func (c *metaCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ticker == "" {
		fmt.Fprintln(os.Stderr, "-ticker is required")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		return a.catalog.UpdateMeta(ctx, c.ticker, c.currency, c.unit, c.category)
	})
}

type watchCmd struct {
	off  bool
	list bool
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "set or list watched instruments" }
func (*watchCmd) Usage() string {
	return `derivedctl watch [-off] <TICKER> [...] | -list
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.off, "off", false, "Unwatch instead of watch")
	f.BoolVar(&c.list, "list", false, "List watched instruments")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.list && f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "give tickers or -list")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		if c.list {
			insts, err := a.catalog.List(ctx, true)
			if err != nil {
				return err
			}
			for _, inst := range insts {
				fmt.Printf("%s\t%s\t%s\t%s\n", inst.Ticker, inst.Currency, inst.Unit, inst.Category)
			}
			return nil
		}
		return a.catalog.SetWatched(ctx, f.Args(), !c.off)
	})
}
