package config

import (
	"strings"

	"commodity-lab/internal/transform"
)

const (
	DefaultMaxConns       = 10
	DefaultDerivedBackend = BackendPostgres
	DefaultBackfillDays   = transform.DefaultBackfillDays
	DefaultPriceField     = "close"
	DefaultMaxParallel    = 4
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultNamespace      = "commodity_lab"
)

// Derived series backends.
const (
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

func (c *Config) applyDefaults() {
	if c.Storage.MaxConns == 0 {
		c.Storage.MaxConns = DefaultMaxConns
	}
	c.Storage.DerivedBackend = strings.ToLower(strings.TrimSpace(c.Storage.DerivedBackend))
	if c.Storage.DerivedBackend == "" {
		c.Storage.DerivedBackend = DefaultDerivedBackend
	}

	if c.Engine.BackfillDays == 0 {
		c.Engine.BackfillDays = DefaultBackfillDays
	}
	c.Engine.PriceField = strings.ToLower(strings.TrimSpace(c.Engine.PriceField))
	if c.Engine.PriceField == "" {
		c.Engine.PriceField = DefaultPriceField
	}
	if c.Engine.MaxParallel == 0 {
		c.Engine.MaxParallel = DefaultMaxParallel
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
}
