package syncengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
)

func TestProbeTracksConnectivity(t *testing.T) {
	fake := remote.NewFake()
	monitor := NewMonitor(fake, "farms", 0, nil)

	require.True(t, monitor.Online(), "monitor assumes online until a probe fails")

	fake.SetOffline(true)
	assert.False(t, monitor.Probe(context.Background()))
	assert.False(t, monitor.Online())

	fake.SetOffline(false)
	assert.True(t, monitor.Probe(context.Background()))
	assert.True(t, monitor.Online())
}

func TestOnlineTransitionFiresListenersOnce(t *testing.T) {
	fake := remote.NewFake()
	monitor := NewMonitor(fake, "farms", 0, nil)

	fired := 0
	monitor.OnOnline(func() { fired++ })

	fake.SetOffline(true)
	monitor.Probe(context.Background())
	assert.Zero(t, fired, "going offline fires nothing")

	fake.SetOffline(false)
	monitor.Probe(context.Background())
	assert.Equal(t, 1, fired)

	// Staying online is not a transition.
	monitor.Probe(context.Background())
	assert.Equal(t, 1, fired)
}

func TestNonNetworkErrorsCountAsOnline(t *testing.T) {
	fake := remote.NewFake()
	fake.FailTable("farms", &remote.StoreError{Kind: remote.KindValidation, Table: "farms", Message: "permission denied"})
	monitor := NewMonitor(fake, "farms", 0, nil)

	// The store answered, so the link is up even though the call failed.
	assert.True(t, monitor.Probe(context.Background()))
	assert.True(t, monitor.Online())
}

func TestOnlineTransitionDrainsQueue(t *testing.T) {
	engine, fake, queue := newTestEngine(t)

	_, err := queue.Enqueue(models.OpCreateInvoice, map[string]any{
		"farm_id": "farm-x", "date": "2025-06-01",
		"invoice_number": "INV-1", "total_cartons": 2, "total_weight": 5,
	})
	require.NoError(t, err)

	monitor := NewMonitor(fake, "farms", 0, nil)
	monitor.OnOnline(func() {
		_, err := engine.ProcessQueue(context.Background())
		assert.NoError(t, err)
	})

	fake.SetOffline(true)
	monitor.Probe(context.Background())
	fake.SetOffline(false)
	monitor.Probe(context.Background())

	n, err := queue.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, fake.Rows("invoices"), 1)
}
