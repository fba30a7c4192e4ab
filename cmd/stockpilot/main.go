package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockpilot/stockpilot/internal/app"
	"github.com/stockpilot/stockpilot/internal/catalog"
	"github.com/stockpilot/stockpilot/internal/observability"
	"github.com/stockpilot/stockpilot/internal/platform/cache"
	"github.com/stockpilot/stockpilot/internal/platform/db"
	"github.com/stockpilot/stockpilot/internal/platform/storage"
	"github.com/stockpilot/stockpilot/internal/procurement"
	"github.com/stockpilot/stockpilot/internal/quickbooks"
	"github.com/stockpilot/stockpilot/internal/reports"
	"github.com/stockpilot/stockpilot/internal/shared"
	"github.com/stockpilot/stockpilot/internal/tasks"
	"github.com/stockpilot/stockpilot/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	productCache := reports.NewProductCache(redisClient, cfg.CacheTTL)

	var media *catalog.MediaPipeline
	if cfg.MediaBucket != "" {
		store, err := storage.NewS3Store(ctx, cfg.MediaBucket, cfg.MediaPublicBase)
		if err != nil {
			logger.Error("init media store", slog.Any("error", err))
			os.Exit(1)
		}
		media = catalog.NewMediaPipeline(store, logger, cfg.AppBaseURL)
	} else {
		logger.Info("media bucket not configured, product media disabled")
	}

	idempotency := shared.NewIdempotencyStore(dbpool)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, media, productCache, idempotency, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService, catalogRepo)

	procurementRepo := procurement.NewRepository(dbpool)
	procurementService := procurement.NewService(procurementRepo, catalogService, logger)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	tasksRepo := tasks.NewRepository(dbpool)
	tasksService := tasks.NewService(tasksRepo, logger)
	tasksHandler := tasks.NewHandler(logger, tasksService)

	reportsService := reports.NewService(catalogRepo, procurementRepo, productCache)
	reportsHandler := reports.NewHandler(logger, reportsService)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	var quickbooksHandler *quickbooks.Handler
	if cfg.QuickBooksEnabled() {
		qbClient := quickbooks.NewClient(quickbooks.ClientConfig{
			ClientID:     cfg.QuickBooksClientID,
			ClientSecret: cfg.QuickBooksClientSecret,
			RedirectURI:  cfg.QuickBooksRedirectURI,
			Sandbox:      cfg.QuickBooksSandbox,
		})
		qbRepo := quickbooks.NewRepository(dbpool)
		qbService := quickbooks.NewService(logger, qbClient, qbRepo, redisClient, productCache, jobsClient)
		quickbooksHandler = quickbooks.NewHandler(logger, qbService, cfg.SettingsURL)
	} else {
		logger.Info("quickbooks credentials not configured, integration disabled")
	}

	metrics := observability.NewMetrics()
	apiKeys := shared.NewAPIKeyStore(dbpool)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Keys:               apiKeys,
		CatalogHandler:     catalogHandler,
		ProcurementHandler: procurementHandler,
		TasksHandler:       tasksHandler,
		ReportsHandler:     reportsHandler,
		QuickBooksHandler:  quickbooksHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
