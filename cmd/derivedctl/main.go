// Command derivedctl manages derived commodity series: recipes, FX/unit
// transforms, recomputes and the instrument catalog.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

// As a CLI with a short lifecycle, global flags are shared by every subcommand.
var (
	configPath    = flag.String("config", os.Getenv("DERIVEDCTL_CONFIG"), "Path to YAML config file")
	envFile       = flag.String("env-file", ".env", "Path to .env file loaded before config")
	postgresDSN   = flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN = flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides config)")
	useMemory     = flag.Bool("use-memory", false, "Use in-memory storage")
	logLevel      = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	metricsAddr   = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	pricesCSV     = flag.String("prices-csv", "", "Load raw bars from this CSV before running (handy with -use-memory)")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&validateCmd{}, "recipes")
	commander.Register(&previewCmd{}, "recipes")
	commander.Register(&recipeCmd{}, "recipes")
	commander.Register(&recomputeCmd{}, "recipes")
	commander.Register(&recipeDeleteCmd{}, "recipes")

	commander.Register(&transformCmd{}, "transforms")
	commander.Register(&transformRecomputeCmd{}, "transforms")
	commander.Register(&transformDeleteCmd{}, "transforms")

	commander.Register(&updateCmd{}, "catalog")
	commander.Register(&loadPricesCmd{}, "catalog")
	commander.Register(&deleteCmd{}, "catalog")
	commander.Register(&metaCmd{}, "catalog")
	commander.Register(&watchCmd{}, "catalog")

	commander.Register(&auditCmd{}, "reports")
	commander.Register(&exportCmd{}, "reports")
	commander.Register(&reportCmd{}, "reports")

	commander.Register(&migrateCmd{}, "admin")

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	status := commander.Execute(ctx)
	cancel()
	os.Exit(int(status))
}
