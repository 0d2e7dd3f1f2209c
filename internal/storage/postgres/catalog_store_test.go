package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

func TestInstrumentStore_UpsertMergesMetadata(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewInstrumentStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.Instrument{Ticker: " ttf=f", Currency: "eur", Unit: "Mwh", Category: "gas"}))
	require.NoError(t, store.SetWatched(ctx, "TTF=F", true))
	require.NoError(t, store.Upsert(ctx, &domain.Instrument{Ticker: "TTF=F", Name: "Dutch TTF"}))

	got, err := store.GetByTicker(ctx, "ttf=f")
	require.NoError(t, err)
	assert.Equal(t, "TTF=F", got.Ticker)
	assert.Equal(t, "Dutch TTF", got.Name)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, "MWh", got.Unit)
	assert.Equal(t, "gas", got.Category)
	assert.Equal(t, domain.SourceLocal, got.Source)
	assert.True(t, got.Watched)

	watched, err := store.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, watched, 1)

	require.NoError(t, store.Delete(ctx, "TTF=F"))
	_, err = store.GetByTicker(ctx, "TTF=F")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.SetWatched(ctx, "TTF=F", false), storage.ErrNotFound)
}

func TestPriceStore_UpsertAndSince(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(pool)

	bars := []*domain.Bar{
		{Ticker: "GC=F", Date: domain.MustDay("2024-01-01"), Close: ptr(2000.0), Volume: ptr(int64(10))},
		{Ticker: "GC=F", Date: domain.MustDay("2024-01-02"), Close: ptr(2010.0)},
		{Ticker: "GC=F", Date: domain.MustDay("2024-01-03"), Close: ptr(2020.0)},
	}
	n, err := store.UpsertBulk(ctx, bars)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// later write wins
	_, err = store.UpsertBulk(ctx, []*domain.Bar{{Ticker: "gc=f", Date: domain.MustDay("2024-01-02"), Close: ptr(2015.0)}})
	require.NoError(t, err)

	got, err := store.GetSince(ctx, "GC=F", domain.MustDay("2024-01-02"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 2015.0, *got[0].Close, 1e-9)
	assert.Nil(t, got[0].Volume)
	assert.True(t, got[0].Date.Equal(domain.MustDay("2024-01-02")))

	removed, err := store.DeleteByTicker(ctx, "GC=F")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
}
