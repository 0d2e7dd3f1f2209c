package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"commodity-lab/internal/config"
	"commodity-lab/internal/observability"
	"commodity-lab/internal/storage/migrations"
	pgstore "commodity-lab/internal/storage/postgres"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply embedded PostgreSQL and ClickHouse migrations" }
func (*migrateCmd) Usage() string {
	return `derivedctl migrate

  Applies PostgreSQL migrations, and ClickHouse migrations when a
  ClickHouse DSN is configured. Safe to run repeatedly.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if cfg.Storage.UseMemory {
		fmt.Fprintln(os.Stderr, "nothing to migrate with in-memory storage")
		return subcommands.ExitUsageError
	}
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)

	if err := migrate(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("migration failed")
		return subcommands.ExitFailure
	}
	logger.Info().Bool("clickhouse", cfg.Storage.ClickHouseDSN != "").Msg("migrations applied")
	return subcommands.ExitSuccess
}

func migrate(ctx context.Context, cfg *config.Config) error {
	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN, cfg.Storage.MaxConns)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if _, err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}

	if cfg.Storage.ClickHouseDSN == "" {
		return nil
	}
	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
	if err != nil {
		return fmt.Errorf("clickhouse migrations: %w", err)
	}
	return conn.Close()
}
