package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/stockpilot/stockpilot/internal/app"
	"github.com/stockpilot/stockpilot/internal/catalog"
	"github.com/stockpilot/stockpilot/internal/platform/cache"
	"github.com/stockpilot/stockpilot/internal/platform/db"
	"github.com/stockpilot/stockpilot/internal/quickbooks"
	"github.com/stockpilot/stockpilot/internal/reports"
	"github.com/stockpilot/stockpilot/internal/shared"
	"github.com/stockpilot/stockpilot/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	catalogRepo := catalog.NewRepository(pool)
	productCache := reports.NewProductCache(redisClient, cfg.CacheTTL)

	warmupJob := jobs.NewReportWarmupJob(productCache, catalogRepo, pool, logger, nil)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger, nil)

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskReportCacheWarmup, Handler: warmupJob.Handle},
		{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
	}
	cron := []jobs.CronRegistration{
		{Spec: "15 1 * * *", Task: jobs.NewReportCacheWarmupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		{Spec: "45 1 * * *", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
	}

	if cfg.QuickBooksEnabled() {
		qbClient := quickbooks.NewClient(quickbooks.ClientConfig{
			ClientID:     cfg.QuickBooksClientID,
			ClientSecret: cfg.QuickBooksClientSecret,
			RedirectURI:  cfg.QuickBooksRedirectURI,
			Sandbox:      cfg.QuickBooksSandbox,
		})
		qbRepo := quickbooks.NewRepository(pool)
		publisher := quickbooks.NewPublisher(redisClient)

		jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()

		importJob := jobs.NewImportJob(qbRepo, qbClient, catalogRepo, publisher, logger, nil)
		pushJob := jobs.NewProductPushJob(qbRepo, qbClient, catalogRepo, logger, nil)
		pullJob := jobs.NewInventoryPullJob(qbRepo, qbClient, catalogRepo, productCache, logger, nil)
		sweepJob := jobs.NewAutoSyncSweepJob(qbRepo, jobsClient, logger, nil)

		handlers = append(handlers,
			jobs.TaskHandler{Type: jobs.TaskQuickBooksImport, Handler: importJob.Handle},
			jobs.TaskHandler{Type: jobs.TaskQuickBooksProductPush, Handler: pushJob.Handle},
			jobs.TaskHandler{Type: jobs.TaskQuickBooksInventoryPull, Handler: pullJob.Handle},
			jobs.TaskHandler{Type: jobs.TaskAutoSyncSweep, Handler: sweepJob.Handle},
		)
		cron = append(cron, jobs.CronRegistration{
			Spec: "*/10 * * * *", Task: jobs.NewAutoSyncSweepTask(), Options: []asynq.Option{asynq.MaxRetry(1)},
		})
	} else {
		logger.Info("quickbooks credentials not configured, sync workers disabled")
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
