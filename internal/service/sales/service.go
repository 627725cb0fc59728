// Package sales owns invoices and the sales aggregator that keeps the
// matching daily statistic's sales and derived inventory in step with the
// invoice set.
package sales

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/razamarafat/morvarid-APP-sub000/internal/auth"
	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/editwindow"
	"github.com/razamarafat/morvarid-APP-sub000/internal/inventory"
	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
	"github.com/razamarafat/morvarid-APP-sub000/internal/syncengine"
	"github.com/razamarafat/morvarid-APP-sub000/internal/syncqueue"
)

// Table is the remote table backing invoices.
const Table = "invoices"

// ErrWindowClosed mirrors the statistics edit-window error for invoices.
var ErrWindowClosed = fmt.Errorf("edit window closed (%s after creation)", editwindow.Window)

// Connectivity is the read side of the sync engine's monitor.
type Connectivity interface {
	Online() bool
}

// StatisticsPatcher is the slice of the statistics service the aggregator
// needs.
type StatisticsPatcher interface {
	ApplySales(ctx context.Context, farmID, date, productID string, sales int, salesKg float64) error
}

// OwnerDirectory reports the role a record owner last authenticated with.
type OwnerDirectory interface {
	RoleOf(userID string) (auth.Role, bool)
}

// Outcome tells the caller whether a write landed remotely or was queued.
type Outcome struct {
	Queued bool `json:"queued"`
}

// CreateInput is a new invoice as entered by registration staff.
type CreateInput struct {
	FarmID        string  `json:"farm_id" binding:"required"`
	Date          string  `json:"date" binding:"required,datefmt"`
	InvoiceNumber string  `json:"invoice_number" binding:"required"`
	TotalCartons  int     `json:"total_cartons" binding:"required,min=1"`
	TotalWeight   float64 `json:"total_weight" binding:"required,gt=0"`
	ProductID     string  `json:"product_id"`
	DriverName    string  `json:"driver_name"`
	DriverPhone   string  `json:"driver_phone"`
	PlateNumber   string  `json:"plate_number"`
	Description   string  `json:"description"`
	IsYesterday   bool    `json:"is_yesterday"`
}

// Service is the invoice store plus the sales aggregator.
type Service struct {
	store   remote.Store
	queue   *syncqueue.Queue
	conn    Connectivity
	stats   StatisticsPatcher
	warner  *editwindow.Warner
	logger  *zap.Logger
	nowFunc func() time.Time

	// onExpiryWarning receives the once-per-record expiration warning.
	onExpiryWarning func(inv models.Invoice, remaining time.Duration)
	ownerRoles      OwnerDirectory

	mu    sync.RWMutex
	cache []models.Invoice
}

// NewService constructs the invoice service.
func NewService(store remote.Store, queue *syncqueue.Queue, conn Connectivity, stats StatisticsPatcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		queue:   queue,
		conn:    conn,
		stats:   stats,
		warner:  editwindow.NewWarner(),
		logger:  logger,
		nowFunc: time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (s *Service) SetNow(fn func() time.Time) { s.nowFunc = fn }

// SetExpiryWarning registers the local-notification sink for edit-window
// expiration warnings.
func (s *Service) SetExpiryWarning(fn func(models.Invoice, time.Duration)) {
	s.onExpiryWarning = fn
}

// SetOwnerRoles registers the role lookup that scopes expiry warnings to
// records owned by non-admin users.
func (s *Service) SetOwnerRoles(dir OwnerDirectory) { s.ownerRoles = dir }

// WarnExpiring fires the once-per-record expiration warning for cached
// invoices inside the warning span. Driven by the minutely cron sweep.
func (s *Service) WarnExpiring() {
	if s.onExpiryWarning == nil {
		return
	}
	now := s.nowFunc()
	for _, inv := range s.List() {
		// Admin-owned records never lock, so their warning is noise.
		if s.adminOwned(inv.CreatedBy) {
			continue
		}
		if s.warner.ShouldWarn(inv.ID, now, inv.CreatedAt) {
			s.onExpiryWarning(inv, editwindow.Remaining(now, inv.CreatedAt))
		}
	}
}

func (s *Service) adminOwned(userID string) bool {
	if s.ownerRoles == nil || userID == "" {
		return false
	}
	role, ok := s.ownerRoles.RoleOf(userID)
	return ok && role.IsAdmin()
}

// Refresh refetches the full invoice collection.
func (s *Service) Refresh(ctx context.Context) error {
	rows, err := s.store.Select(ctx, Table, nil)
	if err != nil {
		return fmt.Errorf("refresh invoices: %w", err)
	}
	invoices := make([]models.Invoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, fromRow(row))
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i].CreatedAt.Before(invoices[j].CreatedAt) })

	s.mu.Lock()
	s.cache = invoices
	s.mu.Unlock()
	return nil
}

// List returns the cached collection.
func (s *Service) List() []models.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Invoice, len(s.cache))
	copy(out, s.cache)
	return out
}

// Get returns a cached invoice by id.
func (s *Service) Get(id string) (models.Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.cache {
		if inv.ID == id {
			return inv, true
		}
	}
	return models.Invoice{}, false
}

// Create records an invoice and recomputes the matching statistic's sales.
// Duplicate invoice numbers surface as-is; a schema-classified rejection is
// retried once with the optional fields stripped; network failures queue.
func (s *Service) Create(ctx context.Context, in CreateInput, ident auth.Identity) (Outcome, error) {
	if err := inventory.CheckBounds("total_cartons", in.TotalCartons); err != nil {
		return Outcome{}, err
	}
	if err := inventory.CheckBoundsKg("total_weight", in.TotalWeight); err != nil {
		return Outcome{}, err
	}

	now := s.nowFunc().UTC()
	row := remote.Row{
		"farm_id":        in.FarmID,
		"date":           in.Date,
		"invoice_number": in.InvoiceNumber,
		"total_cartons":  in.TotalCartons,
		"total_weight":   in.TotalWeight,
		"is_yesterday":   in.IsYesterday,
		"created_at":     now.Format(time.RFC3339Nano),
		"created_by":     ident.UserID,
	}
	setOptional(row, "product_id", in.ProductID)
	setOptional(row, "driver_name", in.DriverName)
	setOptional(row, "driver_phone", in.DriverPhone)
	setOptional(row, "plate_number", in.PlateNumber)
	setOptional(row, "description", in.Description)

	outcome, err := s.write(ctx, models.OpCreateInvoice, row, func() error {
		err := s.store.Insert(ctx, Table, []remote.Row{row})
		if remote.IsSchema(err) {
			// Backend schema is behind the client; retry once with the
			// optional/newer columns removed before giving up.
			s.logger.Warn("schema mismatch on invoice insert, retrying with reduced payload", zap.Error(err))
			return s.store.Insert(ctx, Table, []remote.Row{reduced(row)})
		}
		return err
	})
	if err != nil || outcome.Queued {
		return outcome, err
	}

	s.recompute(ctx, in.FarmID, in.Date, in.ProductID)
	return outcome, nil
}

// Update edits an invoice within the edit window and recomputes the
// aggregates of every tuple the edit touched.
func (s *Service) Update(ctx context.Context, id string, in CreateInput, ident auth.Identity) (Outcome, error) {
	existing, ok := s.Get(id)
	if !ok {
		return Outcome{}, &inventory.ValidationError{Field: "id", Reason: "unknown invoice"}
	}
	if !editwindow.Editable(s.nowFunc(), existing.CreatedAt, ident.Role) {
		return Outcome{}, ErrWindowClosed
	}
	if err := inventory.CheckBounds("total_cartons", in.TotalCartons); err != nil {
		return Outcome{}, err
	}
	if err := inventory.CheckBoundsKg("total_weight", in.TotalWeight); err != nil {
		return Outcome{}, err
	}

	patch := remote.Row{
		"farm_id":        in.FarmID,
		"date":           in.Date,
		"invoice_number": in.InvoiceNumber,
		"total_cartons":  in.TotalCartons,
		"total_weight":   in.TotalWeight,
		"product_id":     in.ProductID,
		"driver_name":    in.DriverName,
		"driver_phone":   in.DriverPhone,
		"plate_number":   in.PlateNumber,
		"description":    in.Description,
		"is_yesterday":   in.IsYesterday,
	}

	payload := syncengine.UpdatePayload{ID: id, Patch: patch}
	outcome, err := s.write(ctx, models.OpUpdateInvoice, payload, func() error {
		return s.store.Update(ctx, Table, id, patch)
	})
	if err != nil || outcome.Queued {
		return outcome, err
	}

	s.recompute(ctx, existing.FarmID, existing.Date, existing.ProductID)
	if existing.FarmID != in.FarmID || existing.Date != in.Date || existing.ProductID != in.ProductID {
		s.recompute(ctx, in.FarmID, in.Date, in.ProductID)
	}
	return outcome, nil
}

// Delete removes an invoice within the edit window and recomputes the
// tuple it belonged to.
func (s *Service) Delete(ctx context.Context, id string, ident auth.Identity) (Outcome, error) {
	existing, ok := s.Get(id)
	if !ok {
		return Outcome{}, nil
	}
	if !editwindow.Editable(s.nowFunc(), existing.CreatedAt, ident.Role) {
		return Outcome{}, ErrWindowClosed
	}

	payload := syncengine.DeletePayload{ID: id}
	outcome, err := s.write(ctx, models.OpDeleteInvoice, payload, func() error {
		return s.store.Delete(ctx, Table, id)
	})
	if err != nil || outcome.Queued {
		return outcome, err
	}

	s.recompute(ctx, existing.FarmID, existing.Date, existing.ProductID)
	return outcome, nil
}

// Recompute re-aggregates a tuple's invoices into the matching statistic.
// A no-op when no statistic exists for the tuple yet.
func (s *Service) Recompute(ctx context.Context, farmID, date, productID string) error {
	filter := remote.Filter{"farm_id": farmID, "date": date}
	if productID != "" {
		filter["product_id"] = productID
	}
	rows, err := s.store.Select(ctx, Table, filter)
	if err != nil {
		return fmt.Errorf("recompute sales for %s/%s: %w", farmID, date, err)
	}

	var cartons int
	var weight float64
	for _, row := range rows {
		inv := fromRow(row)
		cartons += inv.TotalCartons
		weight += inv.TotalWeight
	}

	return s.stats.ApplySales(ctx, farmID, date, productID, cartons, weight)
}

func (s *Service) recompute(ctx context.Context, farmID, date, productID string) {
	if err := s.Recompute(ctx, farmID, date, productID); err != nil {
		s.logger.Warn("sales recompute failed",
			zap.String("farm", farmID),
			zap.String("date", date),
			zap.Error(err))
	}
}

func (s *Service) write(ctx context.Context, op models.OpType, payload any, apply func() error) (Outcome, error) {
	if !s.conn.Online() {
		return s.enqueue(op, payload)
	}
	if err := apply(); err != nil {
		if remote.IsNetwork(err) {
			return s.enqueue(op, payload)
		}
		return Outcome{}, err
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refetch after write failed", zap.Error(err))
	}
	return Outcome{}, nil
}

func (s *Service) enqueue(op models.OpType, payload any) (Outcome, error) {
	item, err := s.queue.Enqueue(op, payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("save to offline queue: %w", err)
	}
	s.logger.Info("saved to offline queue", zap.String("op", string(op)), zap.String("item", item.ID))
	return Outcome{Queued: true}, nil
}

// reduced strips the optional/newer columns from an invoice row.
func reduced(row remote.Row) remote.Row {
	out := remote.Row{}
	for k, v := range row {
		switch k {
		case "driver_name", "driver_phone", "plate_number", "description":
		default:
			out[k] = v
		}
	}
	return out
}

func setOptional(row remote.Row, key, value string) {
	if value != "" {
		row[key] = value
	}
}
