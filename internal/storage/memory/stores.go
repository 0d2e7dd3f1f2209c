package memory

import "commodity-lab/internal/storage"

// NewStores returns a fresh set of in-memory stores.
func NewStores() storage.Stores {
	return storage.Stores{
		Instruments: NewInstrumentStore(),
		Prices:      NewPriceStore(),
		Derived:     NewDerivedSeriesStore(),
		Recipes:     NewRecipeStore(),
		Transforms:  NewTransformStore(),
		Audit:       NewAuditStore(),
	}
}
