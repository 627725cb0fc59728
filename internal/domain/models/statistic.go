package models

import "time"

// DailyStatistic is one production record per (farm, date, product) tuple.
// The tuple is a logical uniqueness rule enforced by upsert semantics.
//
// Invariant after every write:
//
//	CurrentInventory   == PreviousBalance   + Production   - Sales
//	CurrentInventoryKg == PreviousBalanceKg + ProductionKg - SalesKg
type DailyStatistic struct {
	ID                 string    `json:"id"`
	FarmID             string    `json:"farm_id"`
	Date               string    `json:"date"` // YYYY-MM-DD
	ProductID          string    `json:"product_id"`
	PreviousBalance    int       `json:"previous_balance"`
	PreviousBalanceKg  float64   `json:"previous_balance_kg"`
	Production         int       `json:"production"`
	ProductionKg       float64   `json:"production_kg"`
	Sales              int       `json:"sales"`
	SalesKg            float64   `json:"sales_kg"`
	CurrentInventory   int       `json:"current_inventory"`
	CurrentInventoryKg float64   `json:"current_inventory_kg"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	CreatedBy          string    `json:"created_by"`
}

// Invoice is one sales/loading document. Creating, updating or deleting an
// invoice recomputes the sales figures of the matching DailyStatistic.
type Invoice struct {
	ID            string    `json:"id"`
	FarmID        string    `json:"farm_id"`
	Date          string    `json:"date"`
	InvoiceNumber string    `json:"invoice_number"`
	TotalCartons  int       `json:"total_cartons"`
	TotalWeight   float64   `json:"total_weight"`
	ProductID     string    `json:"product_id,omitempty"`
	DriverName    string    `json:"driver_name,omitempty"`
	DriverPhone   string    `json:"driver_phone,omitempty"`
	PlateNumber   string    `json:"plate_number,omitempty"`
	Description   string    `json:"description,omitempty"`
	IsYesterday   bool      `json:"is_yesterday"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	CreatedBy     string    `json:"created_by"`
}
