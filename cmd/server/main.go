package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/razamarafat/morvarid-APP-sub000/internal/alerts"
	"github.com/razamarafat/morvarid-APP-sub000/internal/auth"
	"github.com/razamarafat/morvarid-APP-sub000/internal/config"
	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
	"github.com/razamarafat/morvarid-APP-sub000/internal/scheduler"
	"github.com/razamarafat/morvarid-APP-sub000/internal/server/handlers"
	"github.com/razamarafat/morvarid-APP-sub000/internal/server/router"
	farmsvc "github.com/razamarafat/morvarid-APP-sub000/internal/service/farms"
	salesvc "github.com/razamarafat/morvarid-APP-sub000/internal/service/sales"
	statsvc "github.com/razamarafat/morvarid-APP-sub000/internal/service/statistics"
	"github.com/razamarafat/morvarid-APP-sub000/internal/syncengine"
	"github.com/razamarafat/morvarid-APP-sub000/internal/syncqueue"
	"github.com/razamarafat/morvarid-APP-sub000/pkg/logger"
)

func main() {
	// Missing connection secrets halt startup entirely.
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	store := remote.NewClient(cfg.Store.URL, cfg.Store.AnonKey, baseLogger.Named("remote"))

	queue, err := syncqueue.Open(cfg.Queue.DBPath)
	if err != nil {
		baseLogger.Fatal("failed to open offline queue", zap.Error(err))
	}
	defer func() {
		if err := queue.Close(); err != nil {
			baseLogger.Error("failed to close offline queue", zap.Error(err))
		}
	}()

	monitor := syncengine.NewMonitor(store, "farms", 30*time.Second, baseLogger.Named("sync.monitor"))
	engine := syncengine.New(store, queue, baseLogger.Named("sync.engine"))

	roles := auth.NewRegistry()
	farmSvc := farmsvc.NewService(store, baseLogger.Named("svc.farms"))
	statSvc := statsvc.NewService(store, queue, monitor, farmSvc, baseLogger.Named("svc.statistics"))
	statSvc.SetOwnerRoles(roles)
	saleSvc := salesvc.NewService(store, queue, monitor, statSvc, baseLogger.Named("svc.sales"))
	saleSvc.SetOwnerRoles(roles)
	alertSvc := alerts.NewService(store, cfg.Alerts.Channel, farmSvc, statSvc, baseLogger.Named("svc.alerts"))

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startupCtx, cancel := context.WithTimeout(rootCtx, 30*time.Second)
	if err := farmSvc.SeedDefaults(startupCtx); err != nil {
		baseLogger.Warn("default product seeding deferred", zap.Error(err))
	}
	if err := statSvc.Refresh(startupCtx); err != nil {
		baseLogger.Warn("initial statistics fetch failed", zap.Error(err))
	}
	if err := saleSvc.Refresh(startupCtx); err != nil {
		baseLogger.Warn("initial invoice fetch failed", zap.Error(err))
	}
	cancel()

	// Realtime invalidation: a row change by any client refetches the
	// affected collection.
	if _, err := store.Subscribe(rootCtx, statsvc.Table, func(remote.Change) {
		if err := statSvc.Refresh(rootCtx); err != nil {
			baseLogger.Warn("statistics invalidation refetch failed", zap.Error(err))
		}
	}); err != nil {
		baseLogger.Warn("statistics subscription unavailable", zap.Error(err))
	}
	if _, err := store.Subscribe(rootCtx, salesvc.Table, func(remote.Change) {
		if err := saleSvc.Refresh(rootCtx); err != nil {
			baseLogger.Warn("invoice invalidation refetch failed", zap.Error(err))
		}
	}); err != nil {
		baseLogger.Warn("invoice subscription unavailable", zap.Error(err))
	}

	drain := func() {
		report, err := engine.ProcessQueue(rootCtx)
		if err != nil {
			if !errors.Is(err, syncengine.ErrDrainInProgress) {
				baseLogger.Error("queue drain failed", zap.Error(err))
			}
			return
		}
		// Replayed invoices change the sales side of their statistics;
		// recompute each touched tuple so derived inventory catches up.
		for _, tuple := range report.InvoiceTuples {
			if err := saleSvc.Recompute(rootCtx, tuple.FarmID, tuple.Date, tuple.ProductID); err != nil {
				baseLogger.Warn("post-drain sales recompute failed",
					zap.String("farm", tuple.FarmID),
					zap.String("date", tuple.Date),
					zap.Error(err))
			}
		}
		if err := alertSvc.PublishSyncReport(rootCtx, report); err != nil {
			baseLogger.Warn("failed to publish sync report", zap.Error(err))
		}
	}

	// Drain triggers: connectivity restored, and startup with a non-empty
	// queue while online.
	monitor.OnOnline(drain)
	go monitor.Start(rootCtx)
	if n, err := queue.Len(); err == nil && n > 0 && monitor.Online() {
		baseLogger.Info("draining queue left over from previous run", zap.Int("pending", n))
		go drain()
	}

	statSvc.SetExpiryWarning(func(stat models.DailyStatistic, remaining time.Duration) {
		baseLogger.Info("statistic edit window closing soon",
			zap.String("id", stat.ID),
			zap.String("farm", stat.FarmID),
			zap.Duration("remaining", remaining))
	})
	saleSvc.SetExpiryWarning(func(inv models.Invoice, remaining time.Duration) {
		baseLogger.Info("invoice edit window closing soon",
			zap.String("id", inv.ID),
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.Duration("remaining", remaining))
	})

	sched, err := scheduler.New(cfg.Alerts, alertSvc, statSvc, saleSvc, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	api := &handlers.API{
		Farms:  farmSvc,
		Stats:  statSvc,
		Sales:  saleSvc,
		Sync:   handlers.SyncController{Queue: queue, Engine: engine, Monitor: monitor},
		Roles:  roles,
		Logger: baseLogger.Named("api"),
	}
	engineRouter := router.New(api, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: engineRouter,
	}

	go func() {
		baseLogger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	baseLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
