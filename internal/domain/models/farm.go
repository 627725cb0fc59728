package models

// FarmType determines the inventory roll-forward policy for a farm.
type FarmType string

const (
	// FarmStandard farms report raw production; inventory rolls forward
	// from the previous day's balance.
	FarmStandard FarmType = "STANDARD"
	// FarmMiscellaneous farms report end-of-day on-hand stock instead of
	// raw output; their previous balance is always forced to zero.
	FarmMiscellaneous FarmType = "MISCELLANEOUS"
)

// Farm is a production site managed by an administrator.
type Farm struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Type       FarmType `json:"type"`
	IsActive   bool     `json:"is_active"`
	ProductIDs []string `json:"product_ids"`
}

// ProductUnit is the measurement basis of a product.
type ProductUnit string

const (
	UnitCount  ProductUnit = "COUNT"
	UnitWeight ProductUnit = "WEIGHT"
)

// Product is referenced by id from statistics and invoices and is never
// physically deleted in normal flows.
type Product struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Unit          ProductUnit `json:"unit"`
	HasWeightUnit bool        `json:"has_weight_unit"`
	IsDefault     bool        `json:"is_default"`
	IsCustom      bool        `json:"is_custom"`
}

// DefaultProducts are seeded idempotently at startup so MISCELLANEOUS farms
// always have something to record against.
var DefaultProducts = []Product{
	{ID: "default-egg-carton", Name: "Egg Carton", Unit: UnitCount, HasWeightUnit: true, IsDefault: true},
	{ID: "default-misc-goods", Name: "Miscellaneous Goods", Unit: UnitWeight, HasWeightUnit: true, IsDefault: true},
}
