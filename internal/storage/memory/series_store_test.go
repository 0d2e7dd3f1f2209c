package memory

import (
	"context"
	"errors"
	"testing"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

func fp(v float64) *float64 { return &v }

func TestPriceStore_UpsertAndRange(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	bars := []*domain.Bar{
		{Ticker: "gc=f", Date: domain.MustDay("2024-01-03"), Close: fp(3)},
		{Ticker: "GC=F", Date: domain.MustDay("2024-01-01"), Close: fp(1)},
		{Ticker: "GC=F", Date: domain.MustDay("2024-01-02"), Close: fp(2)},
	}
	n, err := store.UpsertBulk(ctx, bars)
	if err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows, got %d", n)
	}

	got, _ := store.GetByTicker(ctx, "GC=F")
	if len(got) != 3 || *got[0].Close != 1 || *got[2].Close != 3 {
		t.Fatalf("unexpected bars: %v", got)
	}

	since, _ := store.GetSince(ctx, "GC=F", domain.MustDay("2024-01-02"))
	if len(since) != 2 {
		t.Errorf("expected 2 bars since 01-02, got %d", len(since))
	}
}

func TestPriceStore_LaterWriteWins(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	day := domain.MustDay("2024-01-01")
	_, _ = store.UpsertBulk(ctx, []*domain.Bar{{Ticker: "X", Date: day, Close: fp(1)}})
	_, _ = store.UpsertBulk(ctx, []*domain.Bar{{Ticker: "X", Date: day, Close: fp(5)}})

	got, _ := store.GetByTicker(ctx, "X")
	if len(got) != 1 || *got[0].Close != 5 {
		t.Errorf("expected single bar with close 5, got %v", got)
	}
}

func TestPriceStore_InvalidBatchWritesNothing(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	_, err := store.UpsertBulk(ctx, []*domain.Bar{
		{Ticker: "X", Date: domain.MustDay("2024-01-01"), Close: fp(1)},
		{Ticker: "", Date: domain.MustDay("2024-01-02"), Close: fp(1)},
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if got, _ := store.GetByTicker(ctx, "X"); len(got) != 0 {
		t.Errorf("expected no rows, got %d", len(got))
	}
}

func TestDerivedSeriesStore_Idempotent(t *testing.T) {
	store := NewDerivedSeriesStore()
	ctx := context.Background()

	points := []domain.Point{
		{Date: domain.MustDay("2024-01-01"), Value: 1},
		{Date: domain.MustDay("2024-01-02"), Value: 2},
	}
	n1, err := store.UpsertBulk(ctx, "d1", points)
	if err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}
	n2, _ := store.UpsertBulk(ctx, "D1", points)
	if n1 != 2 || n2 != 2 {
		t.Errorf("expected 2 rows on both runs, got %d and %d", n1, n2)
	}

	got, _ := store.GetByTicker(ctx, "D1")
	if len(got) != 2 || got[0].Value != 1 || got[1].Value != 2 {
		t.Errorf("unexpected series: %v", got)
	}

	removed, _ := store.DeleteByTicker(ctx, "d1")
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if _, ok, _ := store.LastDate(ctx, "D1"); ok {
		t.Error("expected no last date after delete")
	}
}
