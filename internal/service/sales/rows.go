package sales

import (
	"time"

	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
)

func fromRow(row remote.Row) models.Invoice {
	inv := models.Invoice{
		ID:           row.ID(),
		TotalCartons: asInt(row["total_cartons"]),
		TotalWeight:  asFloat(row["total_weight"]),
		CreatedAt:    asTime(row["created_at"]),
		UpdatedAt:    asTime(row["updated_at"]),
	}
	inv.FarmID, _ = row["farm_id"].(string)
	inv.Date, _ = row["date"].(string)
	inv.InvoiceNumber, _ = row["invoice_number"].(string)
	inv.ProductID, _ = row["product_id"].(string)
	inv.DriverName, _ = row["driver_name"].(string)
	inv.DriverPhone, _ = row["driver_phone"].(string)
	inv.PlateNumber, _ = row["plate_number"].(string)
	inv.Description, _ = row["description"].(string)
	inv.CreatedBy, _ = row["created_by"].(string)
	if v, ok := row["is_yesterday"].(bool); ok {
		inv.IsYesterday = v
	}
	return inv
}

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
