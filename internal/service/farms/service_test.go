package farms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
)

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	fake := remote.NewFake()
	svc := NewService(fake, nil)

	require.NoError(t, svc.SeedDefaults(context.Background()))
	require.Len(t, fake.Rows("products"), len(models.DefaultProducts))

	// Second run must not duplicate the well-known products.
	require.NoError(t, svc.SeedDefaults(context.Background()))
	assert.Len(t, fake.Rows("products"), len(models.DefaultProducts))
	assert.Len(t, svc.Products(), len(models.DefaultProducts))
}

// racingStore rejects every insert the way a concurrent seeder winning the
// race would.
type racingStore struct {
	remote.Store
}

func (s racingStore) Insert(ctx context.Context, table string, rows []remote.Row) error {
	return &remote.StoreError{Kind: remote.KindDuplicate, Table: table, Message: "duplicate key value"}
}

func TestSeedDefaultsToleratesInsertRace(t *testing.T) {
	svc := NewService(racingStore{Store: remote.NewFake()}, nil)

	assert.NoError(t, svc.SeedDefaults(context.Background()))
}

func TestFarmDirectory(t *testing.T) {
	fake := remote.NewFake()
	fake.Seed("farms",
		remote.Row{"id": "f1", "name": "North", "type": "STANDARD", "is_active": true},
		remote.Row{"id": "f2", "name": "Sundries", "type": "MISCELLANEOUS", "is_active": true},
		remote.Row{"id": "f3", "name": "Retired", "type": "STANDARD", "is_active": false},
	)
	svc := NewService(fake, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	f, ok := svc.Farm("f2")
	require.True(t, ok)
	assert.Equal(t, models.FarmMiscellaneous, f.Type)

	assert.Len(t, svc.Farms(), 3)
	active := svc.ActiveFarms()
	assert.Len(t, active, 2)
	for _, f := range active {
		assert.True(t, f.IsActive)
	}
}

func TestCreateFarmRefreshesCache(t *testing.T) {
	fake := remote.NewFake()
	svc := NewService(fake, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	err := svc.CreateFarm(context.Background(), models.Farm{
		Name:       "West",
		Type:       models.FarmStandard,
		IsActive:   true,
		ProductIDs: []string{"default-egg-carton"},
	})
	require.NoError(t, err)
	assert.Len(t, svc.Farms(), 1)

	rows := fake.Rows("farms")
	require.Len(t, rows, 1)
	id := rows[0].ID()

	require.NoError(t, svc.UpdateFarm(context.Background(), id, remote.Row{"is_active": false}))
	assert.Empty(t, svc.ActiveFarms())

	require.NoError(t, svc.DeleteFarm(context.Background(), id))
	assert.Empty(t, svc.Farms())
}
