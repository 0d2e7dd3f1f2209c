package transform

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
	"commodity-lab/internal/storage/memory"
)

func fp(v float64) *float64 { return &v }

func newTestPipeline(t *testing.T) (*Pipeline, storage.Stores) {
	t.Helper()
	stores := memory.NewStores()
	p := NewPipeline(Options{
		TransformStore:     stores.Transforms,
		DerivedSeriesStore: stores.Derived,
		PriceStore:         stores.Prices,
		InstrumentStore:    stores.Instruments,
		RecipeStore:        stores.Recipes,
		AuditStore:         stores.Audit,
	})
	return p, stores
}

func putCloses(t *testing.T, stores storage.Stores, ticker string, days []string, closes []float64) {
	t.Helper()
	bars := make([]*domain.Bar, len(days))
	for i := range days {
		bars[i] = &domain.Bar{Ticker: ticker, Date: domain.MustDay(days[i]), Close: fp(closes[i])}
	}
	_, err := stores.Prices.UpsertBulk(context.Background(), bars)
	require.NoError(t, err)
}

func derivedValues(t *testing.T, stores storage.Stores, ticker string) []float64 {
	t.Helper()
	rows, err := stores.Derived.GetByTicker(context.Background(), ticker)
	require.NoError(t, err)
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Value
	}
	return out
}

func TestRecompute_MultiplierOnly(t *testing.T) {
	p, stores := newTestPipeline(t)
	putCloses(t, stores, "B", []string{"2024-01-01", "2024-01-02"}, []float64{10, 12})

	res, err := p.Recompute(context.Background(), &domain.Transform{
		DerivedTicker: "B_X2", BaseTicker: "B", Multiplier: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, "derived upsert 2 rows", res.Message)
	require.NotNil(t, res.LastDate)
	assert.Equal(t, domain.MustDay("2024-01-02"), *res.LastDate)
	assert.Equal(t, []float64{20, 24}, derivedValues(t, stores, "B_X2"))

	latest, err := stores.Audit.Latest(context.Background(), "B_X2")
	require.NoError(t, err)
	assert.Equal(t, domain.AuditTransform, latest.Kind)
	assert.Equal(t, domain.StatusSuccess, latest.Status)
}

func TestRecompute_AsOfForwardFill(t *testing.T) {
	p, stores := newTestPipeline(t)
	putCloses(t, stores, "BASE", []string{"2024-01-01", "2024-01-02", "2024-01-03"}, []float64{100, 200, 300})
	putCloses(t, stores, "FX", []string{"2024-01-01"}, []float64{1.5})

	res, err := p.Recompute(context.Background(), &domain.Transform{
		DerivedTicker: "BASE_FX", BaseTicker: "BASE", FxTicker: "FX", FxOp: domain.FxMul,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, []float64{150, 300, 450}, derivedValues(t, stores, "BASE_FX"))
}

func TestRecompute_FxDivideAndLeadingBackfill(t *testing.T) {
	p, stores := newTestPipeline(t)
	putCloses(t, stores, "BASE", []string{"2024-01-01", "2024-01-02", "2024-01-03"}, []float64{100, 200, 300})
	putCloses(t, stores, "FX", []string{"2024-01-02", "2024-01-03"}, []float64{2, 4})

	_, err := p.Recompute(context.Background(), &domain.Transform{
		DerivedTicker: "BASE_DIV", BaseTicker: "BASE", FxTicker: "FX", FxOp: "DIV", Divider: 10,
	})
	require.NoError(t, err)
	// 2024-01-01 has no FX at or before it and takes the first matched rate.
	assert.Equal(t, []float64{5, 10, 7.5}, derivedValues(t, stores, "BASE_DIV"))
}

func TestRecompute_Idempotent(t *testing.T) {
	p, stores := newTestPipeline(t)
	putCloses(t, stores, "BASE", []string{"2024-01-01", "2024-01-02", "2024-01-03"}, []float64{1, 2, 3})
	putCloses(t, stores, "FX", []string{"2024-01-01", "2024-01-03"}, []float64{10, 20})
	tr := &domain.Transform{DerivedTicker: "IDEM", BaseTicker: "BASE", FxTicker: "FX"}

	first, err := p.Recompute(context.Background(), tr)
	require.NoError(t, err)
	before := derivedValues(t, stores, "IDEM")

	second, err := p.Recompute(context.Background(), tr)
	require.NoError(t, err)

	assert.Equal(t, before, derivedValues(t, stores, "IDEM"))
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, []float64{10, 20, 60}, before)
}

func TestRecompute_IncrementalWindow(t *testing.T) {
	p, stores := newTestPipeline(t)
	days := make([]string, 20)
	closes := make([]float64, 20)
	for i := range days {
		days[i] = fmt.Sprintf("2024-01-%02d", i+1)
		closes[i] = float64(i + 1)
	}
	putCloses(t, stores, "BASE", days, closes)
	tr := &domain.Transform{DerivedTicker: "INC", BaseTicker: "BASE"}

	full, err := p.Recompute(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, 20, full.Rows)

	// Restart from 2024-01-20 minus 7 days.
	partial, err := p.Recompute(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, 8, partial.Rows)
	assert.Len(t, derivedValues(t, stores, "INC"), 20)
}

func TestRecompute_IncrementalSparseFx(t *testing.T) {
	p, stores := newTestPipeline(t)
	days := make([]string, 20)
	closes := make([]float64, 20)
	for i := range days {
		days[i] = fmt.Sprintf("2024-01-%02d", i+1)
		closes[i] = 100
	}
	putCloses(t, stores, "BASE", days, closes)
	putCloses(t, stores, "FX", []string{"2024-01-01", "2024-01-16"}, []float64{1, 2})
	tr := &domain.Transform{DerivedTicker: "SPARSE", BaseTicker: "BASE", FxTicker: "FX"}

	_, err := p.Recompute(context.Background(), tr)
	require.NoError(t, err)
	full := derivedValues(t, stores, "SPARSE")
	require.Len(t, full, 20)
	assert.Equal(t, 100.0, full[12])
	assert.Equal(t, 200.0, full[15])

	res, err := p.Recompute(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, res.Status)
	assert.Equal(t, full, derivedValues(t, stores, "SPARSE"))
}

func TestRecompute_FxOlderThanWindow(t *testing.T) {
	p, stores := newTestPipeline(t)
	days := make([]string, 20)
	closes := make([]float64, 20)
	for i := range days {
		days[i] = fmt.Sprintf("2024-01-%02d", i+1)
		closes[i] = 10
	}
	putCloses(t, stores, "BASE", days[:15], closes[:15])
	putCloses(t, stores, "FX", []string{"2024-01-01"}, []float64{3})
	tr := &domain.Transform{DerivedTicker: "STALE_FX", BaseTicker: "BASE", FxTicker: "FX"}

	_, err := p.Recompute(context.Background(), tr)
	require.NoError(t, err)

	putCloses(t, stores, "BASE", days[15:], closes[15:])
	res, err := p.Recompute(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, res.Status)
	require.NotNil(t, res.LastDate)
	assert.Equal(t, domain.MustDay("2024-01-20"), *res.LastDate)

	values := derivedValues(t, stores, "STALE_FX")
	require.Len(t, values, 20)
	for _, v := range values {
		assert.Equal(t, 30.0, v)
	}
}

func TestRecompute_MissingBase(t *testing.T) {
	p, stores := newTestPipeline(t)

	res, err := p.Recompute(context.Background(), &domain.Transform{DerivedTicker: "NOBASE", BaseTicker: "GHOST"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEmpty, res.Status)
	assert.Contains(t, res.Message, ErrMissingBaseData.Error())
	assert.Zero(t, res.Rows)

	latest, err := stores.Audit.Latest(context.Background(), "NOBASE")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEmpty, latest.Status)
}

func TestRecompute_MissingFx(t *testing.T) {
	p, stores := newTestPipeline(t)
	putCloses(t, stores, "BASE", []string{"2024-01-01"}, []float64{1})

	res, err := p.Recompute(context.Background(), &domain.Transform{DerivedTicker: "NOFX", BaseTicker: "BASE", FxTicker: "EURUSD=X"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEmpty, res.Status)
	assert.Contains(t, res.Message, ErrMissingFxData.Error())
	assert.Contains(t, res.Message, "EURUSD=X")
	assert.Empty(t, derivedValues(t, stores, "NOFX"))
}

func TestRecompute_ZeroDividerDefaulted(t *testing.T) {
	p, stores := newTestPipeline(t)
	putCloses(t, stores, "BASE", []string{"2024-01-01"}, []float64{4})

	res, err := p.Recompute(context.Background(), &domain.Transform{DerivedTicker: "Z", BaseTicker: "BASE", Multiplier: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, res.Status)
	assert.Contains(t, res.Message, ErrDivideByZeroConfig.Error())
	assert.Equal(t, []float64{12}, derivedValues(t, stores, "Z"))
}

func TestRecompute_DerivedBase(t *testing.T) {
	p, stores := newTestPipeline(t)
	ctx := context.Background()
	_, err := stores.Derived.UpsertBulk(ctx, "SPREAD", []domain.Point{
		{Date: domain.MustDay("2024-01-01"), Value: 1},
		{Date: domain.MustDay("2024-01-02"), Value: 2},
	})
	require.NoError(t, err)

	res, err := p.Recompute(ctx, &domain.Transform{DerivedTicker: "SPREAD_X", BaseTicker: "SPREAD", Multiplier: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, []float64{100, 200}, derivedValues(t, stores, "SPREAD_X"))
}

func TestSaveAndCompute(t *testing.T) {
	p, stores := newTestPipeline(t)
	ctx := context.Background()
	putCloses(t, stores, "BZ=F", []string{"2024-01-01"}, []float64{80})
	putCloses(t, stores, "EURUSD=X", []string{"2024-01-01"}, []float64{1.25})

	res, err := p.SaveAndCompute(ctx, &domain.Transform{
		DerivedTicker:  " brent_eur ",
		BaseTicker:     "bz=f",
		FxTicker:       "eurusd=x",
		FxOp:           domain.FxDiv,
		TargetCurrency: "eur",
		TargetUnit:     "bbl",
		Enabled:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "BRENT_EUR", res.TransformID)
	assert.Equal(t, []float64{64}, derivedValues(t, stores, "BRENT_EUR"))

	inst, err := stores.Instruments.GetByTicker(ctx, "BRENT_EUR")
	require.NoError(t, err)
	assert.Equal(t, "EUR", inst.Currency)
	assert.Equal(t, "bbl", inst.Unit)
	assert.Equal(t, domain.CategoryDerived, inst.Category)

	// Changing the formula replaces the series.
	_, err = p.SaveAndCompute(ctx, &domain.Transform{
		TransformID: "BRENT_EUR", DerivedTicker: "BRENT_EUR", BaseTicker: "BZ=F", Multiplier: 2, Enabled: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{160}, derivedValues(t, stores, "BRENT_EUR"))
}

func TestSaveAndCompute_Rejects(t *testing.T) {
	p, stores := newTestPipeline(t)
	ctx := context.Background()
	putCloses(t, stores, "A", []string{"2024-01-01"}, []float64{1})

	_, err := p.SaveAndCompute(ctx, &domain.Transform{DerivedTicker: "A", BaseTicker: "a"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = p.SaveAndCompute(ctx, &domain.Transform{DerivedTicker: "X", BaseTicker: "A", FxTicker: "X"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = p.SaveAndCompute(ctx, &domain.Transform{DerivedTicker: "A_X", BaseTicker: ""})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = p.SaveAndCompute(ctx, &domain.Transform{TransformID: "one", DerivedTicker: "A_X", BaseTicker: "A"})
	require.NoError(t, err)
	_, err = p.SaveAndCompute(ctx, &domain.Transform{TransformID: "two", DerivedTicker: "A_X", BaseTicker: "A"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	require.NoError(t, stores.Recipes.Upsert(ctx, &domain.Recipe{DerivedTicker: "R", SourceTickers: []string{"A"}, Expression: "S1"}))
	_, err = p.SaveAndCompute(ctx, &domain.Transform{DerivedTicker: "R", BaseTicker: "A"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRecomputeByIDAndDelete(t *testing.T) {
	p, stores := newTestPipeline(t)
	ctx := context.Background()
	putCloses(t, stores, "A", []string{"2024-01-01"}, []float64{1})

	_, err := p.SaveAndCompute(ctx, &domain.Transform{TransformID: "t-1", DerivedTicker: "A_USD", BaseTicker: "A"})
	require.NoError(t, err)

	res, err := p.RecomputeByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, res.Status)

	res, err = p.RecomputeByID(ctx, "a_usd")
	require.NoError(t, err)
	assert.Equal(t, "t-1", res.TransformID)

	_, err = p.RecomputeByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, p.Delete(ctx, "t-1", true))
	assert.Empty(t, derivedValues(t, stores, "A_USD"))
	_, err = stores.Audit.Latest(ctx, "A_USD")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = stores.Transforms.GetByID(ctx, "t-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNewPipeline_Defaults(t *testing.T) {
	p, _ := newTestPipeline(t)
	assert.Equal(t, DefaultBackfillDays*24*time.Hour, p.backfill)
}
