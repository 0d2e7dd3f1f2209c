package domain

import "time"

// Recipe defines a derived ticker as an expression over source tickers.
// Corresponds to derived_recipes table. One recipe per derived ticker.
type Recipe struct {
	DerivedTicker string
	SourceTickers []string // ordered; position i binds to S{i+1}
	Expression    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Normalize canonicalises tickers and trims the expression.
func (r *Recipe) Normalize() {
	r.DerivedTicker = NormalizeTicker(r.DerivedTicker)
	r.SourceTickers = CleanTickers(r.SourceTickers)
	r.Expression = trimSpace(r.Expression)
}

// References reports whether ticker is one of the recipe's sources.
func (r *Recipe) References(ticker string) bool {
	for _, s := range r.SourceTickers {
		if s == ticker {
			return true
		}
	}
	return false
}
