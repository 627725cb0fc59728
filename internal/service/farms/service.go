// Package farms manages the farm and product directories. These are
// admin-only, low-churn tables; writes go straight to the remote store and
// are not eligible for offline queueing.
package farms

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
)

const (
	farmsTable    = "farms"
	productsTable = "products"
)

// Service is the farm/product directory backed by the remote store with a
// full-refetch cache.
type Service struct {
	store  remote.Store
	logger *zap.Logger

	mu       sync.RWMutex
	farms    map[string]models.Farm
	products map[string]models.Product
}

// NewService constructs the directory service.
func NewService(store remote.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		logger:   logger,
		farms:    make(map[string]models.Farm),
		products: make(map[string]models.Product),
	}
}

// SeedDefaults idempotently creates the two well-known default products the
// MISCELLANEOUS farm type depends on.
func (s *Service) SeedDefaults(ctx context.Context) error {
	for _, p := range models.DefaultProducts {
		existing, err := s.store.Select(ctx, productsTable, remote.Filter{"id": p.ID})
		if err != nil {
			return fmt.Errorf("check default product %s: %w", p.ID, err)
		}
		if len(existing) > 0 {
			continue
		}
		row := remote.Row{
			"id":              p.ID,
			"name":            p.Name,
			"unit":            string(p.Unit),
			"has_weight_unit": p.HasWeightUnit,
			"is_default":      true,
			"is_custom":       false,
		}
		if err := s.store.Insert(ctx, productsTable, []remote.Row{row}); err != nil {
			if remote.IsDuplicate(err) {
				continue // raced another instance, fine
			}
			return fmt.Errorf("seed default product %s: %w", p.ID, err)
		}
		s.logger.Info("seeded default product", zap.String("product", p.ID))
	}
	return s.Refresh(ctx)
}

// Refresh refetches both directories in full.
func (s *Service) Refresh(ctx context.Context) error {
	farmRows, err := s.store.Select(ctx, farmsTable, nil)
	if err != nil {
		return fmt.Errorf("refresh farms: %w", err)
	}
	productRows, err := s.store.Select(ctx, productsTable, nil)
	if err != nil {
		return fmt.Errorf("refresh products: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.farms = make(map[string]models.Farm, len(farmRows))
	for _, row := range farmRows {
		f := farmFromRow(row)
		s.farms[f.ID] = f
	}
	s.products = make(map[string]models.Product, len(productRows))
	for _, row := range productRows {
		p := productFromRow(row)
		s.products[p.ID] = p
	}
	return nil
}

// Farm returns a farm by id.
func (s *Service) Farm(id string) (models.Farm, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.farms[id]
	return f, ok
}

// Farms lists all farms.
func (s *Service) Farms() []models.Farm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Farm, 0, len(s.farms))
	for _, f := range s.farms {
		out = append(out, f)
	}
	return out
}

// ActiveFarms lists farms that should have statistics recorded today.
func (s *Service) ActiveFarms() []models.Farm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Farm
	for _, f := range s.farms {
		if f.IsActive {
			out = append(out, f)
		}
	}
	return out
}

// Products lists all products.
func (s *Service) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out
}

// CreateFarm inserts a farm and refetches the directory.
func (s *Service) CreateFarm(ctx context.Context, farm models.Farm) error {
	row := remote.Row{
		"name":        farm.Name,
		"type":        string(farm.Type),
		"is_active":   farm.IsActive,
		"product_ids": farm.ProductIDs,
	}
	if farm.ID != "" {
		row["id"] = farm.ID
	}
	if err := s.store.Insert(ctx, farmsTable, []remote.Row{row}); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// UpdateFarm patches a farm and refetches the directory.
func (s *Service) UpdateFarm(ctx context.Context, id string, patch remote.Row) error {
	if err := s.store.Update(ctx, farmsTable, id, patch); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// DeleteFarm removes a farm. Historical statistics and invoices keep their
// dangling farm reference; nothing cascades.
func (s *Service) DeleteFarm(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, farmsTable, id); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

func farmFromRow(row remote.Row) models.Farm {
	f := models.Farm{
		ID:       row.ID(),
		Type:     models.FarmStandard,
		IsActive: true,
	}
	if v, ok := row["name"].(string); ok {
		f.Name = v
	}
	if v, ok := row["type"].(string); ok && v != "" {
		f.Type = models.FarmType(v)
	}
	if v, ok := row["is_active"].(bool); ok {
		f.IsActive = v
	}
	if ids, ok := row["product_ids"].([]any); ok {
		for _, id := range ids {
			if s, ok := id.(string); ok {
				f.ProductIDs = append(f.ProductIDs, s)
			}
		}
	}
	return f
}

func productFromRow(row remote.Row) models.Product {
	p := models.Product{ID: row.ID(), Unit: models.UnitCount}
	if v, ok := row["name"].(string); ok {
		p.Name = v
	}
	if v, ok := row["unit"].(string); ok && v != "" {
		p.Unit = models.ProductUnit(v)
	}
	if v, ok := row["has_weight_unit"].(bool); ok {
		p.HasWeightUnit = v
	}
	if v, ok := row["is_default"].(bool); ok {
		p.IsDefault = v
	}
	if v, ok := row["is_custom"].(bool); ok {
		p.IsCustom = v
	}
	return p
}
