package domain

import "time"

// Instrument is a catalog entry for a raw or derived ticker.
// Corresponds to instruments table in PostgreSQL.
type Instrument struct {
	Ticker    string // canonical uppercase ticker (PK)
	Name      string
	QuoteType string // futures, spot, derived, ...
	Exchange  string
	Currency  string // canonical uppercase currency code
	Unit      string // canonical unit (see CanonUnit)
	Category  string
	Source    string // provider that created the entry
	Watched   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Instrument categories and sources used by the engine.
const (
	CategoryDerived = "derived"
	SourceLocal     = "local"
)

// Normalize canonicalises identity and metadata fields in place.
func (i *Instrument) Normalize() {
	i.Ticker = NormalizeTicker(i.Ticker)
	i.Currency = CanonCurrency(i.Currency)
	i.Unit = CanonUnit(i.Unit)
}

// MergeMeta returns a copy of existing with non-empty metadata from update applied.
// Empty currency, unit and category never overwrite stored values.
func MergeMeta(existing, update Instrument) Instrument {
	out := existing
	if update.Name != "" {
		out.Name = update.Name
	}
	if update.QuoteType != "" {
		out.QuoteType = update.QuoteType
	}
	if update.Exchange != "" {
		out.Exchange = update.Exchange
	}
	if update.Currency != "" {
		out.Currency = update.Currency
	}
	if update.Unit != "" {
		out.Unit = update.Unit
	}
	if update.Category != "" {
		out.Category = update.Category
	}
	if update.Source != "" {
		out.Source = update.Source
	}
	return out
}
