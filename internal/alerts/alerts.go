// Package alerts is the thin pub/sub wrapper that pushes cross-role
// notifications (missing daily statistics, sync outcomes) over the remote
// store's broadcast channel.
package alerts

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
	"github.com/razamarafat/morvarid-APP-sub000/internal/syncengine"
)

const (
	// EventMissingStats signals farms with no statistic recorded for a day.
	EventMissingStats = "missing-stats"
	// EventSyncReport carries the aggregated counts of a queue drain.
	EventSyncReport = "sync-report"
)

// MissingStatsPayload lists the farms missing a statistic for a date.
type MissingStatsPayload struct {
	Date      string   `json:"date"`
	FarmIDs   []string `json:"farm_ids"`
	FarmNames []string `json:"farm_names"`
}

// FarmLister enumerates farms that should report daily.
type FarmLister interface {
	ActiveFarms() []models.Farm
}

// StatLister exposes the cached statistics collection.
type StatLister interface {
	List() []models.DailyStatistic
}

// Service publishes alerts on the broadcast channel.
type Service struct {
	store   remote.Store
	channel string
	farms   FarmLister
	stats   StatLister
	logger  *zap.Logger
}

// NewService constructs the alert broadcaster.
func NewService(store remote.Store, channel string, farms FarmLister, stats StatLister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, channel: channel, farms: farms, stats: stats, logger: logger}
}

// SweepMissingStats finds active farms with no statistic recorded for the
// given day and broadcasts one aggregated alert. Run by the evening cron.
func (s *Service) SweepMissingStats(ctx context.Context, date string) error {
	recorded := make(map[string]struct{})
	for _, st := range s.stats.List() {
		if st.Date == date {
			recorded[st.FarmID] = struct{}{}
		}
	}

	payload := MissingStatsPayload{Date: date}
	for _, farm := range s.farms.ActiveFarms() {
		if _, ok := recorded[farm.ID]; !ok {
			payload.FarmIDs = append(payload.FarmIDs, farm.ID)
			payload.FarmNames = append(payload.FarmNames, farm.Name)
		}
	}
	if len(payload.FarmIDs) == 0 {
		s.logger.Info("all active farms reported", zap.String("date", date))
		return nil
	}

	s.logger.Info("broadcasting missing statistics alert",
		zap.String("date", date),
		zap.Strings("farms", payload.FarmNames))
	return s.store.Broadcast(ctx, s.channel, EventMissingStats, payload)
}

// PublishSyncReport pushes the aggregated result of a queue drain so other
// roles see what was recovered or dropped.
func (s *Service) PublishSyncReport(ctx context.Context, report syncengine.Report) error {
	if report.Empty() {
		return nil
	}
	return s.store.Broadcast(ctx, s.channel, EventSyncReport, report)
}

// OnMissingStats registers a handler for missing-statistics alerts from any
// client. Returns the unsubscribe.
func (s *Service) OnMissingStats(fn func(MissingStatsPayload)) func() {
	return s.store.OnBroadcast(s.channel, EventMissingStats, func(raw []byte) {
		var payload MissingStatsPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			s.logger.Warn("bad missing-stats payload", zap.Error(err))
			return
		}
		fn(payload)
	})
}

// Today formats the sweep date in the zone the farms report in.
func Today(loc *time.Location) string {
	return time.Now().In(loc).Format("2006-01-02")
}
