package postgres

import "commodity-lab/internal/storage"

// NewStores returns Postgres-backed stores sharing one pool.
func NewStores(pool *Pool) storage.Stores {
	return storage.Stores{
		Instruments: NewInstrumentStore(pool),
		Prices:      NewPriceStore(pool),
		Derived:     NewDerivedSeriesStore(pool),
		Recipes:     NewRecipeStore(pool),
		Transforms:  NewTransformStore(pool),
		Audit:       NewAuditStore(pool),
	}
}
