package sales

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razamarafat/morvarid-APP-sub000/internal/auth"
	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/inventory"
	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
	"github.com/razamarafat/morvarid-APP-sub000/internal/service/statistics"
	"github.com/razamarafat/morvarid-APP-sub000/internal/syncengine"
	"github.com/razamarafat/morvarid-APP-sub000/internal/syncqueue"
)

type fixedConn bool

func (c fixedConn) Online() bool { return bool(c) }

type farmMap map[string]models.Farm

func (m farmMap) Farm(id string) (models.Farm, bool) {
	f, ok := m[id]
	return f, ok
}

var registrar = auth.Identity{UserID: "u-reg", Role: auth.RoleRegistration}

func newFixture(t *testing.T, store remote.Store) (*Service, *statistics.Service, *syncqueue.Queue) {
	t.Helper()
	queue, err := syncqueue.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = queue.Close() })

	farms := farmMap{"farm-x": {ID: "farm-x", Type: models.FarmStandard, IsActive: true}}
	statSvc := statistics.NewService(store, queue, fixedConn(true), farms, nil)
	saleSvc := NewService(store, queue, fixedConn(true), statSvc, nil)
	return saleSvc, statSvc, queue
}

func seedStatistic(fake *remote.Fake) {
	fake.Seed(statistics.Table, remote.Row{
		"id": "s1", "farm_id": "farm-x", "date": "2025-06-01", "product_id": "prod-y",
		"previous_balance": float64(5), "production": float64(20),
		"sales": float64(0), "current_inventory": float64(25),
		"previous_balance_kg": 10.0, "production_kg": 40.0,
		"sales_kg": 0.0, "current_inventory_kg": 50.0,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func TestCreateInvoiceRecomputesStatistic(t *testing.T) {
	fake := remote.NewFake()
	seedStatistic(fake)
	saleSvc, statSvc, _ := newFixture(t, fake)
	require.NoError(t, statSvc.Refresh(context.Background()))

	_, err := saleSvc.Create(context.Background(), CreateInput{
		FarmID:        "farm-x",
		Date:          "2025-06-01",
		ProductID:     "prod-y",
		InvoiceNumber: "INV-100",
		TotalCartons:  10,
		TotalWeight:   25.5,
	}, registrar)
	require.NoError(t, err)

	st, ok := statSvc.Get("s1")
	require.True(t, ok)
	assert.Equal(t, 10, st.Sales)
	assert.Equal(t, 15, st.CurrentInventory)
	assert.Equal(t, 25.5, st.SalesKg)
	assert.True(t, inventory.Holds(st))
}

func TestDeleteInvoiceRestoresStatistic(t *testing.T) {
	fake := remote.NewFake()
	seedStatistic(fake)
	saleSvc, statSvc, _ := newFixture(t, fake)
	require.NoError(t, statSvc.Refresh(context.Background()))

	_, err := saleSvc.Create(context.Background(), CreateInput{
		FarmID:        "farm-x",
		Date:          "2025-06-01",
		ProductID:     "prod-y",
		InvoiceNumber: "INV-100",
		TotalCartons:  10,
		TotalWeight:   25.5,
	}, registrar)
	require.NoError(t, err)

	invoices := saleSvc.List()
	require.Len(t, invoices, 1)

	_, err = saleSvc.Delete(context.Background(), invoices[0].ID, registrar)
	require.NoError(t, err)

	st, ok := statSvc.Get("s1")
	require.True(t, ok)
	assert.Equal(t, 0, st.Sales)
	assert.Equal(t, 25, st.CurrentInventory)
	assert.True(t, inventory.Holds(st))
}

func TestDrainedInvoiceRecomputesStatistic(t *testing.T) {
	fake := remote.NewFake()
	seedStatistic(fake)

	queue, err := syncqueue.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer queue.Close()

	farms := farmMap{"farm-x": {ID: "farm-x", Type: models.FarmStandard}}
	statSvc := statistics.NewService(fake, queue, fixedConn(false), farms, nil)
	saleSvc := NewService(fake, queue, fixedConn(false), statSvc, nil)
	require.NoError(t, statSvc.Refresh(context.Background()))

	// Created offline, so the invoice waits in the queue.
	outcome, err := saleSvc.Create(context.Background(), CreateInput{
		FarmID:        "farm-x",
		Date:          "2025-06-01",
		ProductID:     "prod-y",
		InvoiceNumber: "INV-100",
		TotalCartons:  10,
		TotalWeight:   25.5,
	}, registrar)
	require.NoError(t, err)
	require.True(t, outcome.Queued)

	engine := syncengine.New(fake, queue, nil)
	report, err := engine.ProcessQueue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Success)
	require.Len(t, fake.Rows(Table), 1)

	// The drain surfaces the touched tuples; recomputing them brings the
	// statistic's sales side up to date.
	for _, tuple := range report.InvoiceTuples {
		require.NoError(t, saleSvc.Recompute(context.Background(), tuple.FarmID, tuple.Date, tuple.ProductID))
	}

	st, ok := statSvc.Get("s1")
	require.True(t, ok)
	assert.Equal(t, 10, st.Sales)
	assert.Equal(t, 15, st.CurrentInventory)
	assert.True(t, inventory.Holds(st))
}

func TestRecomputeWithoutStatisticIsNoop(t *testing.T) {
	fake := remote.NewFake()
	saleSvc, _, _ := newFixture(t, fake)

	require.NoError(t, saleSvc.Recompute(context.Background(), "farm-x", "2025-06-01", "prod-y"))
	assert.Empty(t, fake.Rows(statistics.Table))
}

func TestDuplicateInvoiceNumberSurfaces(t *testing.T) {
	fake := remote.NewFake()
	saleSvc, _, queue := newFixture(t, fake)
	fake.FailTable(Table, &remote.StoreError{Kind: remote.KindDuplicate, Table: Table, Message: "duplicate key value"})

	_, err := saleSvc.Create(context.Background(), CreateInput{
		FarmID:        "farm-x",
		Date:          "2025-06-01",
		InvoiceNumber: "INV-100",
		TotalCartons:  1,
		TotalWeight:   1,
	}, registrar)
	require.Error(t, err)
	assert.True(t, remote.IsDuplicate(err))

	n, _ := queue.Len()
	assert.Zero(t, n, "duplicate errors are never queued")
}

func TestOfflineInvoiceIsQueued(t *testing.T) {
	fake := remote.NewFake()
	queue, err := syncqueue.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer queue.Close()

	farms := farmMap{"farm-x": {ID: "farm-x", Type: models.FarmStandard}}
	statSvc := statistics.NewService(fake, queue, fixedConn(false), farms, nil)
	saleSvc := NewService(fake, queue, fixedConn(false), statSvc, nil)

	outcome, err := saleSvc.Create(context.Background(), CreateInput{
		FarmID:        "farm-x",
		Date:          "2025-06-01",
		InvoiceNumber: "INV-queued",
		TotalCartons:  3,
		TotalWeight:   7.5,
	}, registrar)
	require.NoError(t, err)
	assert.True(t, outcome.Queued)

	items, err := queue.Snapshot()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.OpCreateInvoice, items[0].Type)
	assert.Empty(t, fake.Rows(Table))
}

// schemaStore rejects inserts carrying the newer optional columns, the way
// a backend with an older schema would.
type schemaStore struct {
	remote.Store
	rejections int
}

func (s *schemaStore) Insert(ctx context.Context, table string, rows []remote.Row) error {
	for _, row := range rows {
		if _, ok := row["driver_name"]; ok {
			s.rejections++
			return &remote.StoreError{Kind: remote.KindSchema, Table: table, Message: "column driver_name does not exist"}
		}
	}
	return s.Store.Insert(ctx, table, rows)
}

func TestSchemaErrorRetriesWithReducedPayload(t *testing.T) {
	fake := remote.NewFake()
	seedStatistic(fake)
	hooked := &schemaStore{Store: fake}
	saleSvc, statSvc, _ := newFixture(t, hooked)
	require.NoError(t, statSvc.Refresh(context.Background()))

	_, err := saleSvc.Create(context.Background(), CreateInput{
		FarmID:        "farm-x",
		Date:          "2025-06-01",
		ProductID:     "prod-y",
		InvoiceNumber: "INV-100",
		TotalCartons:  2,
		TotalWeight:   5,
		DriverName:    "D. Driver",
		Description:   "second load",
	}, registrar)
	require.NoError(t, err)
	assert.Equal(t, 1, hooked.rejections)

	rows := fake.Rows(Table)
	require.Len(t, rows, 1)
	assert.NotContains(t, rows[0], "driver_name")
	assert.NotContains(t, rows[0], "description")
	assert.Equal(t, "INV-100", rows[0]["invoice_number"])
}

func TestInvoiceExpiryWarningSkipsAdminOwned(t *testing.T) {
	fake := remote.NewFake()
	inWarnSpan := time.Now().Add(-(4*time.Hour + 5*time.Minute)).UTC().Format(time.RFC3339Nano)
	fake.Seed(Table, remote.Row{
		"id": "admin-owned", "farm_id": "farm-x", "date": "2025-06-01",
		"invoice_number": "INV-1", "created_by": "u-admin", "created_at": inWarnSpan,
	})
	fake.Seed(Table, remote.Row{
		"id": "reg-owned", "farm_id": "farm-x", "date": "2025-06-01",
		"invoice_number": "INV-2", "created_by": registrar.UserID, "created_at": inWarnSpan,
	})
	saleSvc, _, _ := newFixture(t, fake)
	require.NoError(t, saleSvc.Refresh(context.Background()))

	roles := auth.NewRegistry()
	roles.Record(auth.Identity{UserID: "u-admin", Role: auth.RoleAdmin})
	roles.Record(registrar)
	saleSvc.SetOwnerRoles(roles)

	var fired []string
	saleSvc.SetExpiryWarning(func(inv models.Invoice, _ time.Duration) {
		fired = append(fired, inv.ID)
	})

	saleSvc.WarnExpiring()
	assert.Equal(t, []string{"reg-owned"}, fired)
}

func TestInvoiceEditWindow(t *testing.T) {
	fake := remote.NewFake()
	fake.Seed(Table, remote.Row{
		"id": "i-old", "farm_id": "farm-x", "date": "2025-06-01",
		"invoice_number": "INV-1", "total_cartons": float64(2), "total_weight": 5.0,
		"created_at": time.Now().Add(-(5*time.Hour + time.Minute)).UTC().Format(time.RFC3339Nano),
	})
	saleSvc, _, _ := newFixture(t, fake)
	require.NoError(t, saleSvc.Refresh(context.Background()))

	in := CreateInput{
		FarmID: "farm-x", Date: "2025-06-01",
		InvoiceNumber: "INV-1", TotalCartons: 3, TotalWeight: 6,
	}

	_, err := saleSvc.Update(context.Background(), "i-old", in, registrar)
	assert.ErrorIs(t, err, ErrWindowClosed)

	adminIdent := auth.Identity{UserID: "u-admin", Role: auth.RoleAdmin}
	_, err = saleSvc.Update(context.Background(), "i-old", in, adminIdent)
	assert.NoError(t, err)
}
