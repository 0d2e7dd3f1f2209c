package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commodity-lab/internal/domain"
)

func TestDerivedSeriesStore_LaterWriteWins(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDerivedSeriesStore(conn)
	clock := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	points := []domain.Point{
		{Date: domain.MustDay("2024-01-01"), Value: 1},
		{Date: domain.MustDay("2024-01-02"), Value: 2},
		{Date: domain.MustDay("2024-01-03"), Value: 3},
	}
	n, err := store.UpsertBulk(ctx, "d1", points)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	clock = clock.Add(time.Second)
	_, err = store.UpsertBulk(ctx, "D1", []domain.Point{{Date: domain.MustDay("2024-01-02"), Value: 20}})
	require.NoError(t, err)

	got, err := store.GetByTicker(ctx, "D1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 20.0, got[1].Value)

	since, err := store.GetSince(ctx, "D1", domain.MustDay("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.True(t, since[0].Date.Equal(domain.MustDay("2024-01-03")))

	last, ok, err := store.LastDate(ctx, "D1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, last.Equal(domain.MustDay("2024-01-03")))
}

func TestDerivedSeriesStore_Delete(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDerivedSeriesStore(conn)

	_, err := store.UpsertBulk(ctx, "D2", []domain.Point{{Date: domain.MustDay("2024-01-01"), Value: 5}})
	require.NoError(t, err)

	removed, err := store.DeleteByTicker(ctx, "D2")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, err := store.LastDate(ctx, "D2")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err = store.DeleteByTicker(ctx, "MISSING")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
