package align

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// SourceKind identifies where a series is read from.
type SourceKind string

const (
	KindRaw     SourceKind = "raw"
	KindDerived SourceKind = "derived"
)

// SeriesSource reads one ticker as a (date, value) series ordered by date ASC.
// A zero since reads the whole history.
type SeriesSource interface {
	Kind() SourceKind
	Fetch(ctx context.Context, ticker string, since time.Time) ([]domain.Point, error)
}

// RawSource reads one price field of raw daily bars.
// Bars whose field is null are skipped.
type RawSource struct {
	Prices storage.PriceStore
	Field  domain.PriceField
}

// Kind implements SeriesSource.
func (s *RawSource) Kind() SourceKind { return KindRaw }

// Fetch implements SeriesSource.
func (s *RawSource) Fetch(ctx context.Context, ticker string, since time.Time) ([]domain.Point, error) {
	field := s.Field
	if field == "" {
		field = domain.FieldClose
	}
	if !field.IsValid() {
		return nil, fmt.Errorf("%w: price field %q", storage.ErrInvalidInput, field)
	}

	var (
		bars []*domain.Bar
		err  error
	)
	if since.IsZero() {
		bars, err = s.Prices.GetByTicker(ctx, ticker)
	} else {
		bars, err = s.Prices.GetSince(ctx, ticker, since)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch raw %s: %w", ticker, err)
	}

	out := make([]domain.Point, 0, len(bars))
	for _, b := range bars {
		if v, ok := field.Value(b); ok {
			out = append(out, domain.Point{Date: domain.Day(b.Date), Value: v})
		}
	}
	return out, nil
}

// DerivedSource reads materialized derived series.
type DerivedSource struct {
	Derived storage.DerivedSeriesStore
}

// Kind implements SeriesSource.
func (s *DerivedSource) Kind() SourceKind { return KindDerived }

// Fetch implements SeriesSource.
func (s *DerivedSource) Fetch(ctx context.Context, ticker string, since time.Time) ([]domain.Point, error) {
	var (
		rows []*domain.SeriesPoint
		err  error
	)
	if since.IsZero() {
		rows, err = s.Derived.GetByTicker(ctx, ticker)
	} else {
		rows, err = s.Derived.GetSince(ctx, ticker, since)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch derived %s: %w", ticker, err)
	}

	out := make([]domain.Point, len(rows))
	for i, r := range rows {
		out[i] = domain.Point{Date: domain.Day(r.Date), Value: r.Value}
	}
	return out, nil
}

// Resolver treats raw and derived tickers as equal citizens: a ticker with
// materialized derived rows is read as derived, anything else as raw.
type Resolver struct {
	Raw     *RawSource
	Derived *DerivedSource
}

// NewResolver creates a resolver over the given stores.
func NewResolver(prices storage.PriceStore, derived storage.DerivedSeriesStore, field domain.PriceField) *Resolver {
	return &Resolver{
		Raw:     &RawSource{Prices: prices, Field: field},
		Derived: &DerivedSource{Derived: derived},
	}
}

// SourceFor returns the source a ticker is read from.
func (r *Resolver) SourceFor(ctx context.Context, ticker string) (SeriesSource, error) {
	_, ok, err := r.Derived.Derived.LastDate(ctx, ticker)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("resolve %s: %w", ticker, err)
	}
	if ok {
		return r.Derived, nil
	}
	return r.Raw, nil
}

// Fetch reads ticker from whichever source holds it.
func (r *Resolver) Fetch(ctx context.Context, ticker string, since time.Time) ([]domain.Point, error) {
	src, err := r.SourceFor(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return src.Fetch(ctx, ticker, since)
}

var (
	_ SeriesSource = (*RawSource)(nil)
	_ SeriesSource = (*DerivedSource)(nil)
)
