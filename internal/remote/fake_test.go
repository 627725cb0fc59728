package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeNotifiesSubscribersOnEveryMutation(t *testing.T) {
	fake := NewFake()

	var changes []Change
	_, err := fake.Subscribe(context.Background(), "invoices", func(ch Change) {
		changes = append(changes, ch)
	})
	require.NoError(t, err)

	require.NoError(t, fake.Insert(context.Background(), "invoices", []Row{{"id": "i1", "total_cartons": 2}}))
	require.NoError(t, fake.Update(context.Background(), "invoices", "i1", Row{"total_cartons": 3}))
	require.NoError(t, fake.Delete(context.Background(), "invoices", "i1"))

	require.Len(t, changes, 3)
	for _, ch := range changes {
		assert.Equal(t, "invoices", ch.Table)
		assert.Equal(t, "i1", ch.Row.ID())
	}
	assert.Empty(t, fake.Rows("invoices"))

	// Deleting a row that is already gone fires nothing.
	require.NoError(t, fake.Delete(context.Background(), "invoices", "i1"))
	assert.Len(t, changes, 3)
}
