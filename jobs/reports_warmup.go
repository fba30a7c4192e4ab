package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/catalog"
	jobmetrics "github.com/stockpilot/stockpilot/internal/jobs"
	"github.com/stockpilot/stockpilot/internal/reports"
)

// ReportWarmupJob pre-populates the product cache for every workspace so the
// first report request of the day does not pay the load.
type ReportWarmupJob struct {
	Cache    *reports.ProductCache
	Products *catalog.Repository
	Pool     *pgxpool.Pool
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(cache *reports.ProductCache, products *catalog.Repository, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{Cache: cache, Products: products, Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle processes TaskReportCacheWarmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("report warmup: handler not configured")
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskReportCacheWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	workspaces, err := j.fetchWorkspaces(ctx)
	if err != nil {
		resultErr = err
		j.Logger.Error("load workspaces for warmup", slog.Any("error", err))
		return resultErr
	}
	if len(workspaces) == 0 {
		j.Logger.Info("no workspaces discovered for warmup")
		return nil
	}

	warmed := 0
	for _, ws := range workspaces {
		wsCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		_, err := j.Cache.FetchProducts(wsCtx, ws, func(ctx context.Context) ([]catalog.Product, error) {
			return j.Products.ListProducts(ctx, ws, catalog.ProductFilter{})
		})
		cancel()
		if err != nil {
			resultErr = err
			j.Logger.Error("warm workspace cache", slog.String("workspace_id", ws), slog.Any("error", err))
			continue
		}
		warmed++
	}

	j.Logger.Info("completed report cache warmup", slog.Int("workspaces", warmed))
	return resultErr
}

func (j *ReportWarmupJob) fetchWorkspaces(ctx context.Context) ([]string, error) {
	rows, err := j.Pool.Query(ctx, `SELECT id FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
