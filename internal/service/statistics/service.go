// Package statistics owns the daily production records: creation with
// derived-inventory arithmetic, the 5-hour edit window, the offline-queue
// write boundary and the refetch-after-write cache.
package statistics

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

// Table is the remote table backing daily statistics.
const Table = "daily_statistics"

const invoicesTable = "invoices"

// ErrWindowClosed is returned when a non-admin edits a record older than
// the edit window.
var ErrWindowClosed = fmt.Errorf("edit window closed (%s after creation)", editwindow.Window)

// Connectivity is the read side of the sync engine's monitor.
type Connectivity interface {
	Online() bool
}

// FarmDirectory resolves the farm type driving the roll-forward policy.
type FarmDirectory interface {
	Farm(id string) (models.Farm, bool)
}

// OwnerDirectory reports the role a record owner last authenticated with.
type OwnerDirectory interface {
	RoleOf(userID string) (auth.Role, bool)
}

// Outcome tells the caller whether a write landed remotely or was saved to
// the offline queue.
type Outcome struct {
	Queued bool `json:"queued"`
}

// CreateInput is the user-entered portion of a new statistic. For
// MISCELLANEOUS farms Production carries the declared on-hand value.
type CreateInput struct {
	FarmID            string  `json:"farm_id" binding:"required"`
	Date              string  `json:"date" binding:"required,datefmt"`
	ProductID         string  `json:"product_id" binding:"required"`
	PreviousBalance   int     `json:"previous_balance"`
	PreviousBalanceKg float64 `json:"previous_balance_kg"`
	Production        int     `json:"production"`
	ProductionKg      float64 `json:"production_kg"`
}

// Service is the statistics store.
type Service struct {
	store   remote.Store
	queue   *syncqueue.Queue
	conn    Connectivity
	farms   FarmDirectory
	warner  *editwindow.Warner
	logger  *zap.Logger
	nowFunc func() time.Time

	// onExpiryWarning receives the once-per-record expiration warning.
	onExpiryWarning func(stat models.DailyStatistic, remaining time.Duration)
	ownerRoles      OwnerDirectory

	mu    sync.RWMutex
	cache []models.DailyStatistic
}

// NewService constructs the statistics service.
func NewService(store remote.Store, queue *syncqueue.Queue, conn Connectivity, farms FarmDirectory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		queue:   queue,
		conn:    conn,
		farms:   farms,
		warner:  editwindow.NewWarner(),
		logger:  logger,
		nowFunc: time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (s *Service) SetNow(fn func() time.Time) { s.nowFunc = fn }

// SetExpiryWarning registers the local-notification sink for edit-window
// expiration warnings.
func (s *Service) SetExpiryWarning(fn func(models.DailyStatistic, time.Duration)) {
	s.onExpiryWarning = fn
}

// SetOwnerRoles registers the role lookup that scopes expiry warnings to
// records owned by non-admin users.
func (s *Service) SetOwnerRoles(dir OwnerDirectory) { s.ownerRoles = dir }

// Refresh refetches the full collection; the single source of truth after
// every successful mutation.
func (s *Service) Refresh(ctx context.Context) error {
	rows, err := s.store.Select(ctx, Table, nil)
	if err != nil {
		return fmt.Errorf("refresh statistics: %w", err)
	}
	stats := make([]models.DailyStatistic, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, FromRow(row))
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].CreatedAt.Before(stats[j].CreatedAt) })

	s.mu.Lock()
	s.cache = stats
	s.mu.Unlock()
	return nil
}

// List returns the cached collection.
func (s *Service) List() []models.DailyStatistic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DailyStatistic, len(s.cache))
	copy(out, s.cache)
	return out
}

// Get returns a cached record by id.
func (s *Service) Get(id string) (models.DailyStatistic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.cache {
		if st.ID == id {
			return st, true
		}
	}
	return models.DailyStatistic{}, false
}

// find looks up the cached record for a logical tuple.
func (s *Service) find(farmID, date, productID string) (models.DailyStatistic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.cache {
		if st.FarmID == farmID && st.Date == date && st.ProductID == productID {
			return st, true
		}
	}
	return models.DailyStatistic{}, false
}

// Create records a statistic for a (farm, date, product) tuple, upserting
// when the tuple already exists. Validation errors surface immediately;
// network failures queue the create for a later drain.
func (s *Service) Create(ctx context.Context, in CreateInput, ident auth.Identity) (Outcome, error) {
	if err := s.checkBounds(in); err != nil {
		return Outcome{}, err
	}

	farm, ok := s.farms.Farm(in.FarmID)
	if !ok {
		return Outcome{}, &inventory.ValidationError{Field: "farm_id", Reason: "unknown farm"}
	}

	// Upsert semantics enforce the tuple's logical uniqueness.
	if existing, ok := s.find(in.FarmID, in.Date, in.ProductID); ok {
		return s.Update(ctx, existing.ID, in, ident)
	}

	sales, salesKg := s.invoicedSales(ctx, in.FarmID, in.Date, in.ProductID)
	counts := inventory.ForFarm(farm.Type, in.PreviousBalance, in.Production, sales)
	weights := inventory.ForFarmKg(farm.Type, in.PreviousBalanceKg, in.ProductionKg, salesKg)

	now := s.nowFunc().UTC()
	row := remote.Row{
		"farm_id":              in.FarmID,
		"date":                 in.Date,
		"product_id":           in.ProductID,
		"previous_balance":     counts.PreviousBalance,
		"previous_balance_kg":  weights.PreviousBalanceKg,
		"production":           counts.Production,
		"production_kg":        weights.ProductionKg,
		"sales":                counts.Sales,
		"sales_kg":             weights.SalesKg,
		"current_inventory":    counts.CurrentInventory,
		"current_inventory_kg": weights.CurrentInventoryKg,
		"created_at":           now.Format(time.RFC3339Nano),
		"created_by":           ident.UserID,
	}

	return s.write(ctx, models.OpCreateStat, row, func() error {
		return s.store.Insert(ctx, Table, []remote.Row{row})
	})
}

// Update edits an existing statistic, re-deriving the inventory fields.
// The input carries the same shape as Create; zero-valued fields overwrite.
func (s *Service) Update(ctx context.Context, id string, in CreateInput, ident auth.Identity) (Outcome, error) {
	if err := s.checkBounds(in); err != nil {
		return Outcome{}, err
	}

	existing, ok := s.Get(id)
	if !ok {
		return Outcome{}, &inventory.ValidationError{Field: "id", Reason: "unknown statistic"}
	}
	if !editwindow.Editable(s.nowFunc(), existing.CreatedAt, ident.Role) {
		return Outcome{}, ErrWindowClosed
	}

	farm, ok := s.farms.Farm(existing.FarmID)
	if !ok {
		return Outcome{}, &inventory.ValidationError{Field: "farm_id", Reason: "unknown farm"}
	}

	counts := inventory.ForFarm(farm.Type, in.PreviousBalance, in.Production, existing.Sales)
	weights := inventory.ForFarmKg(farm.Type, in.PreviousBalanceKg, in.ProductionKg, existing.SalesKg)

	patch := remote.Row{
		"previous_balance":     counts.PreviousBalance,
		"previous_balance_kg":  weights.PreviousBalanceKg,
		"production":           counts.Production,
		"production_kg":        weights.ProductionKg,
		"sales":                counts.Sales,
		"sales_kg":             weights.SalesKg,
		"current_inventory":    counts.CurrentInventory,
		"current_inventory_kg": weights.CurrentInventoryKg,
	}

	payload := syncengine.UpdatePayload{ID: id, Patch: patch}
	return s.write(ctx, models.OpUpdateStat, payload, func() error {
		return s.store.Update(ctx, Table, id, patch)
	})
}

// Delete removes a statistic. The edit window applies to non-admin roles.
func (s *Service) Delete(ctx context.Context, id string, ident auth.Identity) (Outcome, error) {
	existing, ok := s.Get(id)
	if !ok {
		return Outcome{}, nil // already gone
	}
	if !editwindow.Editable(s.nowFunc(), existing.CreatedAt, ident.Role) {
		return Outcome{}, ErrWindowClosed
	}

	payload := syncengine.DeletePayload{ID: id}
	return s.write(ctx, models.OpDeleteStat, payload, func() error {
		return s.store.Delete(ctx, Table, id)
	})
}

// ApplySales patches the sales figures of a statistic on behalf of the
// sales aggregator, re-deriving current inventory from the record's
// existing previous balance and production.
func (s *Service) ApplySales(ctx context.Context, farmID, date, productID string, sales int, salesKg float64) error {
	stat, ok := s.find(farmID, date, productID)
	if !ok {
		return nil // no statistic recorded yet for the tuple
	}

	counts := inventory.Derive(stat.PreviousBalance, stat.Production, sales)
	weights := inventory.DeriveKg(stat.PreviousBalanceKg, stat.ProductionKg, salesKg)

	patch := remote.Row{
		"sales":                counts.Sales,
		"sales_kg":             weights.SalesKg,
		"current_inventory":    counts.CurrentInventory,
		"current_inventory_kg": weights.CurrentInventoryKg,
	}
	if err := s.store.Update(ctx, Table, stat.ID, patch); err != nil {
		return fmt.Errorf("apply sales to statistic %s: %w", stat.ID, err)
	}
	return s.Refresh(ctx)
}

// WarnExpiring fires the once-per-record expiration warning for cached
// records inside the warning span. Driven by the minutely cron sweep.
func (s *Service) WarnExpiring() {
	if s.onExpiryWarning == nil {
		return
	}
	now := s.nowFunc()
	for _, stat := range s.List() {
		// Admin-owned records never lock, so their warning is noise.
		if s.adminOwned(stat.CreatedBy) {
			continue
		}
		if s.warner.ShouldWarn(stat.ID, now, stat.CreatedAt) {
			s.onExpiryWarning(stat, editwindow.Remaining(now, stat.CreatedAt))
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

// write runs a remote mutation with the offline write boundary: a
// network-classified failure (or a known-offline state) queues the
// operation instead of failing it, everything else surfaces.
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

func (s *Service) checkBounds(in CreateInput) error {
	if err := inventory.CheckBounds("previous_balance", in.PreviousBalance); err != nil {
		return err
	}
	if err := inventory.CheckBounds("production", in.Production); err != nil {
		return err
	}
	if err := inventory.CheckBoundsKg("previous_balance_kg", in.PreviousBalanceKg); err != nil {
		return err
	}
	return inventory.CheckBoundsKg("production_kg", in.ProductionKg)
}

// invoicedSales sums the invoices already recorded for a tuple. Counts and
// weights come back zero when the remote is unreachable; the aggregator
// reconciles once connectivity returns.
func (s *Service) invoicedSales(ctx context.Context, farmID, date, productID string) (int, float64) {
	rows, err := s.store.Select(ctx, invoicesTable, remote.Filter{
		"farm_id":    farmID,
		"date":       date,
		"product_id": productID,
	})
	if err != nil {
		s.logger.Debug("invoiced sales lookup failed", zap.Error(err))
		return 0, 0
	}
	var cartons int
	var weight float64
	for _, row := range rows {
		cartons += asInt(row["total_cartons"])
		weight += asFloat(row["total_weight"])
	}
	return cartons, weight
}
