package alerts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
	"github.com/razamarafat/morvarid-APP-sub000/internal/syncengine"
)

type farmList []models.Farm

func (l farmList) ActiveFarms() []models.Farm { return l }

type statList []models.DailyStatistic

func (l statList) List() []models.DailyStatistic { return l }

func TestSweepMissingStats(t *testing.T) {
	fake := remote.NewFake()
	farms := farmList{
		{ID: "f1", Name: "North"},
		{ID: "f2", Name: "South"},
		{ID: "f3", Name: "East"},
	}
	stats := statList{
		{FarmID: "f1", Date: "2025-06-01"},
		{FarmID: "f2", Date: "2025-05-31"}, // reported yesterday, not today
	}
	svc := NewService(fake, "farm-alerts", farms, stats, nil)

	var got MissingStatsPayload
	unsubscribe := svc.OnMissingStats(func(p MissingStatsPayload) { got = p })
	defer unsubscribe()

	require.NoError(t, svc.SweepMissingStats(context.Background(), "2025-06-01"))

	assert.Equal(t, "2025-06-01", got.Date)
	assert.Equal(t, []string{"f2", "f3"}, got.FarmIDs)
	assert.Equal(t, []string{"South", "East"}, got.FarmNames)
}

func TestSweepAllReportedBroadcastsNothing(t *testing.T) {
	fake := remote.NewFake()
	farms := farmList{{ID: "f1", Name: "North"}}
	stats := statList{{FarmID: "f1", Date: "2025-06-01"}}
	svc := NewService(fake, "farm-alerts", farms, stats, nil)

	fired := false
	defer svc.OnMissingStats(func(MissingStatsPayload) { fired = true })()

	require.NoError(t, svc.SweepMissingStats(context.Background(), "2025-06-01"))
	assert.False(t, fired)
}

func TestPublishSyncReportSkipsEmpty(t *testing.T) {
	fake := remote.NewFake()
	svc := NewService(fake, "farm-alerts", farmList{}, statList{}, nil)

	fired := 0
	defer fake.OnBroadcast("farm-alerts", EventSyncReport, func([]byte) { fired++ })()

	require.NoError(t, svc.PublishSyncReport(context.Background(), syncengine.Report{}))
	assert.Zero(t, fired)

	require.NoError(t, svc.PublishSyncReport(context.Background(), syncengine.Report{Success: 3, Conflicts: 1}))
	assert.Equal(t, 1, fired)
}
