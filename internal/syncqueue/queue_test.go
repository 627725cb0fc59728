package syncqueue

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
)

func openTestQueue(t *testing.T) (*Queue, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	q, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q, path
}

func TestEnqueuePreservesOrder(t *testing.T) {
	q, _ := openTestQueue(t)

	first, err := q.Enqueue(models.OpCreateStat, map[string]any{"farm_id": "f1"})
	require.NoError(t, err)
	second, err := q.Enqueue(models.OpUpdateStat, map[string]any{"id": "s1"})
	require.NoError(t, err)
	third, err := q.Enqueue(models.OpDeleteInvoice, map[string]any{"id": "i1"})
	require.NoError(t, err)

	items, err := q.Snapshot()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, second.ID, items[1].ID)
	assert.Equal(t, third.ID, items[2].ID)
	assert.Equal(t, models.OpCreateStat, items[0].Type)
	assert.JSONEq(t, `{"farm_id":"f1"}`, string(items[0].Payload))
}

func TestQueueSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	q, err := Open(path)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 5; i++ {
		item, err := q.Enqueue(models.OpCreateInvoice, map[string]any{"invoice_number": i})
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}
	require.NoError(t, q.Close())

	// Simulate a process restart.
	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	items, err := reopened.Snapshot()
	require.NoError(t, err)
	require.Len(t, items, 5)
	for i, item := range items {
		assert.Equal(t, ids[i], item.ID, "order must survive restart")
	}
}

func TestDequeueIsIdempotent(t *testing.T) {
	q, _ := openTestQueue(t)

	item, err := q.Enqueue(models.OpDeleteStat, map[string]any{"id": "s1"})
	require.NoError(t, err)

	require.NoError(t, q.Dequeue(item.ID))
	require.NoError(t, q.Dequeue(item.ID), "removing a missing id is a no-op")
	require.NoError(t, q.Dequeue("never-existed"))

	n, err := q.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClear(t *testing.T) {
	q, _ := openTestQueue(t)

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(models.OpCreateStat, map[string]any{"i": i})
		require.NoError(t, err)
	}
	require.NoError(t, q.Clear())

	n, err := q.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBumpRetry(t *testing.T) {
	q, _ := openTestQueue(t)

	item, err := q.Enqueue(models.OpUpdateInvoice, map[string]any{"id": "i1"})
	require.NoError(t, err)
	require.NoError(t, q.BumpRetry(item.ID))
	require.NoError(t, q.BumpRetry(item.ID))

	items, err := q.Snapshot()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].RetryCount)
}

func TestFailureLog(t *testing.T) {
	q, _ := openTestQueue(t)

	require.NoError(t, q.LogFailure(models.OpUpdateStat, "conflict on s1"))
	require.NoError(t, q.LogFailure(models.OpCreateInvoice, "unreadable payload"))

	entries, err := q.Failures()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
		assert.NotEmpty(t, e.Message)
		assert.False(t, e.Timestamp.IsZero())
	}
}
