package statistics

import (
	"time"

	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
)

// FromRow decodes a remote row into a DailyStatistic.
func FromRow(row remote.Row) models.DailyStatistic {
	st := models.DailyStatistic{
		ID:                 row.ID(),
		PreviousBalance:    asInt(row["previous_balance"]),
		PreviousBalanceKg:  asFloat(row["previous_balance_kg"]),
		Production:         asInt(row["production"]),
		ProductionKg:       asFloat(row["production_kg"]),
		Sales:              asInt(row["sales"]),
		SalesKg:            asFloat(row["sales_kg"]),
		CurrentInventory:   asInt(row["current_inventory"]),
		CurrentInventoryKg: asFloat(row["current_inventory_kg"]),
		CreatedAt:          asTime(row["created_at"]),
		UpdatedAt:          asTime(row["updated_at"]),
	}
	st.FarmID, _ = row["farm_id"].(string)
	st.Date, _ = row["date"].(string)
	st.ProductID, _ = row["product_id"].(string)
	st.CreatedBy, _ = row["created_by"].(string)
	return st
}

// asInt tolerates the numeric encodings JSON decoding produces.
func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
