package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"commodity-lab/internal/catalog"
	"commodity-lab/internal/config"
	"commodity-lab/internal/domain"
	"commodity-lab/internal/observability"
	"commodity-lab/internal/orchestrator"
	"commodity-lab/internal/recipe"
	"commodity-lab/internal/reporting"
	"commodity-lab/internal/storage"
	chstore "commodity-lab/internal/storage/clickhouse"
	"commodity-lab/internal/storage/memory"
	pgstore "commodity-lab/internal/storage/postgres"
	"commodity-lab/internal/transform"
)

// app is the wired runtime shared by subcommands.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	stores  storage.Stores
	metrics *observability.Metrics

	catalog      *catalog.Service
	engine       *recipe.Engine
	pipeline     *transform.Pipeline
	orchestrator *orchestrator.Orchestrator

	closers []func()
}

// loadConfig reads .env, the config file and the global flag overrides.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(*envFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		return nil, err
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickHouseDSN = *clickhouseDSN
	}
	if *useMemory {
		cfg.Storage.UseMemory = true
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg: cfg,
		log: observability.NewLogger(cfg.Log.Level, cfg.Log.Format),
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	a.metrics = observability.NewMetrics(cfg.Metrics.Namespace, registry)
	if cfg.Metrics.Addr != "" {
		a.serveMetrics(registry)
	}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	field := domain.PriceField(cfg.Engine.PriceField)
	a.catalog = catalog.NewService(a.stores, &a.log)
	a.engine = recipe.NewEngine(recipe.Options{
		RecipeStore:        a.stores.Recipes,
		DerivedSeriesStore: a.stores.Derived,
		PriceStore:         a.stores.Prices,
		PriceField:         field,
		InstrumentStore:    a.stores.Instruments,
		AuditStore:         a.stores.Audit,
		Metrics:            a.metrics,
		Logger:             &a.log,
	})
	a.pipeline = transform.NewPipeline(transform.Options{
		TransformStore:     a.stores.Transforms,
		DerivedSeriesStore: a.stores.Derived,
		PriceStore:         a.stores.Prices,
		InstrumentStore:    a.stores.Instruments,
		RecipeStore:        a.stores.Recipes,
		AuditStore:         a.stores.Audit,
		Metrics:            a.metrics,
		Logger:             &a.log,
		BackfillDays:       cfg.Engine.BackfillDays,
		PriceField:         field,
	})
	a.orchestrator = orchestrator.New(orchestrator.Options{
		TransformStore: a.stores.Transforms,
		RecipeStore:    a.stores.Recipes,
		Pipeline:       a.pipeline,
		Engine:         a.engine,
		MaxParallel:    cfg.Engine.MaxParallel,
		Metrics:        a.metrics,
		Logger:         &a.log,
	})

	if *pricesCSV != "" {
		if _, err := a.loadPrices(ctx, *pricesCSV, ""); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	if a.cfg.Storage.UseMemory {
		a.stores = memory.NewStores()
		a.log.Debug().Msg("using in-memory storage")
		return nil
	}

	pool, err := pgstore.NewPool(ctx, a.cfg.Storage.PostgresDSN, a.cfg.Storage.MaxConns)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	a.stores = pgstore.NewStores(pool)

	if a.cfg.Storage.DerivedBackend == config.BackendClickHouse {
		conn, err := chstore.NewConn(ctx, a.cfg.Storage.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		a.stores.Derived = chstore.NewDerivedSeriesStore(conn)
	}
	a.log.Debug().Str("derived_backend", a.cfg.Storage.DerivedBackend).Msg("storage connected")
	return nil
}

func (a *app) serveMetrics(g prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(g))
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Str("addr", srv.Addr).Msg("metrics server failed")
		}
	}()
	a.log.Info().Str("addr", srv.Addr).Msg("serving metrics")
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

// loadPrices upserts bars from a CSV file and registers their tickers.
// Returns rows written per ticker.
func (a *app) loadPrices(ctx context.Context, path, ticker string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prices csv: %w", err)
	}
	defer f.Close()

	bars, err := reporting.ReadBarsCSV(f, ticker)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	byTicker := make(map[string][]*domain.Bar)
	for _, b := range bars {
		byTicker[b.Ticker] = append(byTicker[b.Ticker], b)
	}
	rows := make(map[string]int, len(byTicker))
	for tk, tb := range byTicker {
		if err := a.catalog.EnsureInstrument(ctx, &domain.Instrument{Ticker: tk}); err != nil {
			return nil, fmt.Errorf("register %s: %w", tk, err)
		}
		n, err := a.stores.Prices.UpsertBulk(ctx, tb)
		if err != nil {
			return nil, fmt.Errorf("upsert prices %s: %w", tk, err)
		}
		rows[tk] = n
	}
	a.log.Info().Str("file", path).Int("bars", len(bars)).Int("tickers", len(rows)).Msg("prices loaded")
	return rows, nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// run opens the app, runs fn and maps its error to an exit status.
func run(ctx context.Context, fn func(a *app) error) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := fn(a); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
