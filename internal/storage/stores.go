package storage

// Stores bundles the repositories the engine needs. Each backend provides a
// constructor that fills it; the derived series store may come from a
// different backend than the rest.
type Stores struct {
	Instruments InstrumentStore
	Prices      PriceStore
	Derived     DerivedSeriesStore
	Recipes     RecipeStore
	Transforms  TransformStore
	Audit       AuditStore
}
