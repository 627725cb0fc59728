// Package inventory holds the derived-inventory arithmetic shared by the
// statistics service and the sales aggregator. Everything here is pure.
package inventory

import (
	"fmt"

	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
)

// Sanity bounds for a single product/day entry. Values beyond these are
// treated as probable data-entry mistakes, not hard domain limits.
const (
	MaxCount  = 10_000
	MaxWeight = 150_000.0
)

// ValidationError reports a user-input problem. It is surfaced immediately
// and never queued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Counts is the count-based side of a statistic.
type Counts struct {
	PreviousBalance  int
	Production       int
	Sales            int
	CurrentInventory int
}

// Weights is the kilogram-based side of a statistic.
type Weights struct {
	PreviousBalanceKg  float64
	ProductionKg       float64
	SalesKg            float64
	CurrentInventoryKg float64
}

// Derive computes the roll-forward for a STANDARD farm:
//
//	currentInventory = previousBalance + production - sales
func Derive(previousBalance, production, sales int) Counts {
	return Counts{
		PreviousBalance:  previousBalance,
		Production:       production,
		Sales:            sales,
		CurrentInventory: previousBalance + production - sales,
	}
}

// DeriveKg is the weight-based parallel of Derive.
func DeriveKg(previousBalanceKg, productionKg, salesKg float64) Weights {
	return Weights{
		PreviousBalanceKg:  previousBalanceKg,
		ProductionKg:       productionKg,
		SalesKg:            salesKg,
		CurrentInventoryKg: previousBalanceKg + productionKg - salesKg,
	}
}

// DeriveDeclared computes the roll-forward for a MISCELLANEOUS farm, where
// staff declare end-of-day on-hand stock rather than raw output. Previous
// balance is forced to zero and production is back-calculated as
// declared + sales already invoiced, so the standard equation still nets
// out to exactly the declared value.
func DeriveDeclared(declared, sales int) Counts {
	return Counts{
		PreviousBalance:  0,
		Production:       declared + sales,
		Sales:            sales,
		CurrentInventory: declared,
	}
}

// DeriveDeclaredKg is the weight-based parallel of DeriveDeclared.
func DeriveDeclaredKg(declaredKg, salesKg float64) Weights {
	return Weights{
		PreviousBalanceKg:  0,
		ProductionKg:       declaredKg + salesKg,
		SalesKg:            salesKg,
		CurrentInventoryKg: declaredKg,
	}
}

// ForFarm dispatches on farm type. For MISCELLANEOUS farms the production
// argument is interpreted as the declared on-hand value.
func ForFarm(farmType models.FarmType, previousBalance, production, sales int) Counts {
	if farmType == models.FarmMiscellaneous {
		return DeriveDeclared(production, sales)
	}
	return Derive(previousBalance, production, sales)
}

// ForFarmKg is the weight-based parallel of ForFarm.
func ForFarmKg(farmType models.FarmType, previousBalanceKg, productionKg, salesKg float64) Weights {
	if farmType == models.FarmMiscellaneous {
		return DeriveDeclaredKg(productionKg, salesKg)
	}
	return DeriveKg(previousBalanceKg, productionKg, salesKg)
}

// CheckBounds rejects count/weight values outside the sanity bounds before
// any write is attempted.
func CheckBounds(field string, count int) error {
	if count < 0 {
		return &ValidationError{Field: field, Reason: "must not be negative"}
	}
	if count > MaxCount {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("exceeds sanity bound %d", MaxCount)}
	}
	return nil
}

// CheckBoundsKg is the weight-based parallel of CheckBounds.
func CheckBoundsKg(field string, weight float64) error {
	if weight < 0 {
		return &ValidationError{Field: field, Reason: "must not be negative"}
	}
	if weight > MaxWeight {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("exceeds sanity bound %.0f", MaxWeight)}
	}
	return nil
}

// Holds reports whether a statistic satisfies the inventory invariant on
// both the count and weight sides.
func Holds(s models.DailyStatistic) bool {
	return s.CurrentInventory == s.PreviousBalance+s.Production-s.Sales &&
		s.CurrentInventoryKg == s.PreviousBalanceKg+s.ProductionKg-s.SalesKg
}
