package memory

import (
	"context"
	"errors"
	"testing"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

func TestInstrumentStore_UpsertNormalizes(t *testing.T) {
	store := NewInstrumentStore()
	ctx := context.Background()

	err := store.Upsert(ctx, &domain.Instrument{Ticker: "  ttf=f ", Currency: "eur", Unit: "mwh"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByTicker(ctx, "TTF=F")
	if err != nil {
		t.Fatalf("GetByTicker failed: %v", err)
	}
	if got.Currency != "EUR" || got.Unit != "MWh" {
		t.Errorf("expected EUR/MWh, got %s/%s", got.Currency, got.Unit)
	}
	if got.Source != domain.SourceLocal {
		t.Errorf("expected default source %q, got %q", domain.SourceLocal, got.Source)
	}
}

func TestInstrumentStore_UpsertKeepsMetadata(t *testing.T) {
	store := NewInstrumentStore()
	ctx := context.Background()

	_ = store.Upsert(ctx, &domain.Instrument{Ticker: "CL=F", Currency: "USD", Unit: "bbl", Category: "energy"})
	if err := store.SetWatched(ctx, "cl=f", true); err != nil {
		t.Fatalf("SetWatched failed: %v", err)
	}
	_ = store.Upsert(ctx, &domain.Instrument{Ticker: "CL=F", Name: "Crude Oil"})

	got, _ := store.GetByTicker(ctx, "CL=F")
	if got.Currency != "USD" || got.Unit != "bbl" || got.Category != "energy" {
		t.Errorf("metadata overwritten: %+v", got)
	}
	if got.Name != "Crude Oil" {
		t.Errorf("expected name update, got %q", got.Name)
	}
	if !got.Watched {
		t.Error("watch flag lost on upsert")
	}
}

func TestInstrumentStore_ListWatched(t *testing.T) {
	store := NewInstrumentStore()
	ctx := context.Background()

	for _, tk := range []string{"B", "A", "C"} {
		_ = store.Upsert(ctx, &domain.Instrument{Ticker: tk})
	}
	_ = store.SetWatched(ctx, "C", true)

	all, _ := store.List(ctx, false)
	if len(all) != 3 || all[0].Ticker != "A" || all[2].Ticker != "C" {
		t.Errorf("unexpected list order: %v", all)
	}

	watched, _ := store.List(ctx, true)
	if len(watched) != 1 || watched[0].Ticker != "C" {
		t.Errorf("expected only C watched, got %v", watched)
	}
}

func TestInstrumentStore_NotFound(t *testing.T) {
	store := NewInstrumentStore()
	ctx := context.Background()

	if _, err := store.GetByTicker(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetWatched(ctx, "missing", true); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Upsert(ctx, &domain.Instrument{Ticker: "  "}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
