package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/razamarafat/morvarid-APP-sub000/internal/alerts"
	"github.com/razamarafat/morvarid-APP-sub000/internal/config"
	"github.com/razamarafat/morvarid-APP-sub000/internal/service/sales"
	"github.com/razamarafat/morvarid-APP-sub000/internal/service/statistics"
)

// Scheduler manages the recurring jobs: the evening missing-statistics
// sweep and the minutely edit-window expiry warnings.
type Scheduler struct {
	cron     *cron.Cron
	alertSvc *alerts.Service
	statsSvc *statistics.Service
	salesSvc *sales.Service
	cfg      config.Alerts
	location *time.Location
	logger   *zap.Logger
}

// New creates a scheduler in the configured timezone.
func New(cfg config.Alerts, alertSvc *alerts.Service, statsSvc *statistics.Service, salesSvc *sales.Service, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(location)),
		alertSvc: alertSvc,
		statsSvc: statsSvc,
		salesSvc: salesSvc,
		cfg:      cfg,
		location: location,
		logger:   logger,
	}, nil
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.sweepMissingStats); err != nil {
		return err
	}
	// Expiry warnings are evaluated lazily against (now, createdAt); the
	// minutely tick just gives them a chance to fire inside their window.
	if _, err := s.cron.AddFunc("* * * * *", s.warnExpiring); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("alert_schedule", s.cfg.CronSchedule))
	return nil
}

// Stop stops the cron loop.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) sweepMissingStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	date := alerts.Today(s.location)
	if err := s.alertSvc.SweepMissingStats(ctx, date); err != nil {
		s.logger.Error("missing statistics sweep failed", zap.Error(err))
	}
}

func (s *Scheduler) warnExpiring() {
	s.statsSvc.WarnExpiring()
	s.salesSvc.WarnExpiring()
}
