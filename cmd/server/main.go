package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/config"
	"github.com/mamadbah2/warehouse/internal/metrics"
	"github.com/mamadbah2/warehouse/internal/repository"
	"github.com/mamadbah2/warehouse/internal/repository/mongodb"
	"github.com/mamadbah2/warehouse/internal/repository/sessions"
	"github.com/mamadbah2/warehouse/internal/repository/sheets"
	"github.com/mamadbah2/warehouse/internal/repository/sqlstore"
	"github.com/mamadbah2/warehouse/internal/scheduler"
	"github.com/mamadbah2/warehouse/internal/server/handlers"
	"github.com/mamadbah2/warehouse/internal/server/router"
	"github.com/mamadbah2/warehouse/internal/service/accrual"
	"github.com/mamadbah2/warehouse/internal/service/catalog"
	"github.com/mamadbah2/warehouse/internal/service/inventory"
	"github.com/mamadbah2/warehouse/internal/service/shipment"
	"github.com/mamadbah2/warehouse/pkg/clients/moysklad"
	"github.com/mamadbah2/warehouse/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	store, err := openStore(startCtx, cfg.Store, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close store", zap.Error(err))
		}
	}()

	if err := store.Migrate(startCtx); err != nil {
		baseLogger.Fatal("failed to migrate store", zap.Error(err))
	}

	var sessionStore shipment.SessionStore
	if cfg.Sessions.RedisURL != "" {
		redisStore, err := sessions.NewRedisStore(startCtx, cfg.Sessions.RedisURL, cfg.Sessions.TTL)
		if err != nil {
			baseLogger.Fatal("failed to init redis session store", zap.Error(err))
		}
		defer func() { _ = redisStore.Close() }()
		sessionStore = redisStore
		baseLogger.Info("shipment sessions stored in redis")
	} else {
		sessionStore = sessions.NewMemoryStore()
		baseLogger.Warn("REDIS_URL not set, shipment sessions kept in memory")
	}

	recorder := metrics.New()

	var catalogClient moysklad.Client
	if cfg.Catalog.Enabled() {
		catalogClient = moysklad.NewClient(cfg.Catalog)
		baseLogger.Info("moysklad catalog enabled")
	} else {
		baseLogger.Warn("moysklad credentials missing, receipts will not be enriched")
	}
	resolver := catalog.NewResolver(catalogClient, cfg.Catalog.StoreID, cfg.Catalog.Timeout, recorder, baseLogger.Named("svc.catalog"))

	var mirror sheets.StorageLogMirror
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(startCtx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		mirror = sheetsRepo
	}

	inventorySvc := inventory.NewService(store, resolver, recorder, baseLogger.Named("svc.inventory"))
	shipmentSvc := shipment.NewService(store, sessionStore, recorder, baseLogger.Named("svc.shipment"))
	accrualJob := accrual.NewJob(store, mirror, cfg.Accrual.Location(), cfg.Accrual.CutoffHour, recorder, baseLogger.Named("svc.accrual"))

	stockHandler := handlers.NewStockHandler(inventorySvc, baseLogger.Named("handlers.stock"))
	shipmentHandler := handlers.NewShipmentHandler(shipmentSvc, cfg.Accrual.Location(), baseLogger.Named("handlers.shipment"))
	engine := router.New(stockHandler, shipmentHandler, recorder.Handler(), baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Accrual, accrualJob, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig, base *zap.Logger) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverMongoDB:
		repo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoURI, cfg.MongoDB, base.Named("repo.mongodb"))
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.DriverSQLite, config.DriverPostgres:
		repo, err := sqlstore.NewSQLRepository(ctx, cfg.Driver, cfg.DSN, base.Named("repo.sql"))
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
