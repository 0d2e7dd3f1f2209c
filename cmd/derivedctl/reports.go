package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"commodity-lab/internal/reporting"
)

type auditCmd struct {
	ticker string
	limit  int
	out    string
}

func (*auditCmd) Name() string     { return "audit" }
func (*auditCmd) Synopsis() string { return "print the recompute audit log as CSV" }
func (*auditCmd) Usage() string {
	return `derivedctl audit [-ticker T] [-limit N] [-out file.csv]
`
}

func (c *auditCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "ticker", "", "Only entries of this ticker")
	f.IntVar(&c.limit, "limit", 50, "Maximum entries, newest first (0 for all)")
	f.StringVar(&c.out, "out", "", "Write to file instead of stdout")
}

func (c *auditCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app) error {
		entries, err := a.stores.Audit.List(ctx, c.ticker, c.limit)
		if err != nil {
			return err
		}
		return writeOutput(c.out, func(w io.Writer) error {
			return reporting.WriteAuditCSV(w, entries)
		})
	})
}

type exportCmd struct {
	ticker string
	out    string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export a materialized derived series as CSV" }
func (*exportCmd) Usage() string {
	return `derivedctl export -ticker <DERIVED> [-out file.csv]
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "ticker", "", "Derived ticker")
	f.StringVar(&c.out, "out", "", "Write to file instead of stdout")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ticker == "" {
		fmt.Fprintln(os.Stderr, "-ticker is required")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		points, err := a.stores.Derived.GetByTicker(ctx, c.ticker)
		if err != nil {
			return err
		}
		return writeOutput(c.out, func(w io.Writer) error {
			return reporting.WriteSeriesCSV(w, points)
		})
	})
}

type reportCmd struct {
	format string
	out    string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "summarise every ticker and its last recompute" }
func (*reportCmd) Usage() string {
	return `derivedctl report [-format markdown|csv] [-out file]
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.format, "format", "markdown", "Output format: markdown or csv")
	f.StringVar(&c.out, "out", "", "Write to file instead of stdout")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.format != "markdown" && c.format != "csv" {
		fmt.Fprintf(os.Stderr, "unknown format %q\n", c.format)
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		report, err := reporting.NewGenerator(a.stores).Generate(ctx)
		if err != nil {
			return err
		}
		text := ""
		if c.format == "csv" {
			if text, err = reporting.RenderCSV(report); err != nil {
				return err
			}
		} else {
			text = reporting.RenderMarkdown(report)
		}
		return writeOutput(c.out, func(w io.Writer) error {
			_, err := io.WriteString(w, text)
			return err
		})
	})
}

// writeOutput writes to path, or stdout when path is empty.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
