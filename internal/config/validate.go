package config

import (
	"errors"
	"fmt"

	"commodity-lab/internal/domain"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !c.Storage.UseMemory {
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required unless storage.use_memory is set")
		}
		switch c.Storage.DerivedBackend {
		case BackendPostgres:
		case BackendClickHouse:
			if c.Storage.ClickHouseDSN == "" {
				return errors.New("storage.clickhouse_dsn is required for the clickhouse derived backend")
			}
		default:
			return fmt.Errorf("storage.derived_backend must be %q or %q, got %q",
				BackendPostgres, BackendClickHouse, c.Storage.DerivedBackend)
		}
	}
	if c.Storage.MaxConns < 0 {
		return errors.New("storage.max_conns must be positive")
	}

	if c.Engine.BackfillDays < 0 {
		return errors.New("engine.backfill_days must not be negative")
	}
	if !domain.PriceField(c.Engine.PriceField).IsValid() {
		return fmt.Errorf("engine.price_field %q is not an allowed price field", c.Engine.PriceField)
	}
	if c.Engine.MaxParallel < 1 {
		return errors.New("engine.max_parallel must be at least 1")
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}
