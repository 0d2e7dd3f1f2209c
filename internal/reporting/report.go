package reporting

import (
	"time"

	"commodity-lab/internal/domain"
)

// Series kinds shown in the status report.
const (
	KindRaw       = "raw"
	KindRecipe    = "recipe"
	KindTransform = "transform"
)

// StatusReport summarises the catalog and the last recompute of every ticker.
type StatusReport struct {
	GeneratedAt time.Time

	Instruments int
	Recipes     int
	Transforms  int
	Failing     int // tickers whose latest audit is an error

	// Rows sorted by ticker.
	Rows []StatusRow
}

// StatusRow describes one ticker.
type StatusRow struct {
	Ticker     string
	Kind       string
	Definition string // expression or transform formula, empty for raw
	Currency   string
	Unit       string
	Watched    bool

	Points    int
	FirstDate *time.Time
	LastDate  *time.Time

	// Latest audit entry, zero when the ticker was never recomputed.
	LastStatus  domain.Status
	LastMessage string
	AttemptedAt *time.Time
}
