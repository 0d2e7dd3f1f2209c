package domain

import "time"

// Bar represents one daily OHLCV observation of a raw ticker.
// Corresponds to prices_daily table. Written by ingestion, read-only to the engine.
type Bar struct {
	Ticker   string
	Date     time.Time // calendar day, UTC midnight
	Open     *float64
	High     *float64
	Low      *float64
	Close    *float64
	AdjClose *float64
	Volume   *int64
}

// Point is one (date, value) observation of a series.
type Point struct {
	Date  time.Time
	Value float64
}

// SeriesPoint is a materialized derived value.
// Corresponds to derived_daily table, keyed by (ticker, date).
type SeriesPoint struct {
	Ticker    string
	Date      time.Time
	Value     float64
	UpdatedAt time.Time
}

// PriceField selects which bar column feeds a series.
type PriceField string

// Allowed price fields.
const (
	FieldOpen     PriceField = "open"
	FieldHigh     PriceField = "high"
	FieldLow      PriceField = "low"
	FieldClose    PriceField = "close"
	FieldAdjClose PriceField = "adj_close"
	FieldVolume   PriceField = "volume"
)

// IsValid reports whether f is one of the allowed price fields.
func (f PriceField) IsValid() bool {
	switch f {
	case FieldOpen, FieldHigh, FieldLow, FieldClose, FieldAdjClose, FieldVolume:
		return true
	}
	return false
}

// Value returns the selected field of b, or false when it is null.
func (f PriceField) Value(b *Bar) (float64, bool) {
	var p *float64
	switch f {
	case FieldOpen:
		p = b.Open
	case FieldHigh:
		p = b.High
	case FieldLow:
		p = b.Low
	case FieldClose:
		p = b.Close
	case FieldAdjClose:
		p = b.AdjClose
	case FieldVolume:
		if b.Volume == nil {
			return 0, false
		}
		return float64(*b.Volume), true
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MustDay parses a YYYY-MM-DD date. Intended for fixtures and tests.
func MustDay(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}
