package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stockpilot/stockpilot/internal/jobs"
	"github.com/stockpilot/stockpilot/internal/quickbooks"
)

// ScheduleStore lists workspaces with auto-sync enabled.
type ScheduleStore interface {
	ListAutoSync(ctx context.Context) ([]quickbooks.AutoSyncConfig, error)
}

// SyncEnqueuer submits the per-workspace sync tasks the sweep discovers.
type SyncEnqueuer interface {
	EnqueueProductPush(ctx context.Context, workspaceID string) error
	EnqueueInventoryPull(ctx context.Context, workspaceID string) error
}

// AutoSyncSweepJob walks the saved schedules and enqueues sync tasks for
// every workspace whose interval has elapsed.
type AutoSyncSweepJob struct {
	Store    ScheduleStore
	Enqueuer SyncEnqueuer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewAutoSyncSweepJob wires dependencies for the sweep handler.
func NewAutoSyncSweepJob(store ScheduleStore, enqueuer SyncEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *AutoSyncSweepJob {
	return &AutoSyncSweepJob{
		Store:    store,
		Enqueuer: enqueuer,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one sweep over all enabled schedules.
func (j *AutoSyncSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("autosync sweep: handler not configured")
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskAutoSyncSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	configs, err := j.Store.ListAutoSync(ctx)
	if err != nil {
		resultErr = err
		j.Logger.Error("list autosync schedules", slog.Any("error", err))
		return resultErr
	}

	now := j.clock()
	pushes, pulls := 0, 0
	for _, cfg := range configs {
		if cfg.DueProductPush(now) {
			if err := j.Enqueuer.EnqueueProductPush(ctx, cfg.WorkspaceID); err != nil {
				resultErr = err
				j.Logger.Error("enqueue product push", slog.String("workspace_id", cfg.WorkspaceID), slog.Any("error", err))
			} else {
				pushes++
			}
		}
		if cfg.DueInventoryPull(now) {
			if err := j.Enqueuer.EnqueueInventoryPull(ctx, cfg.WorkspaceID); err != nil {
				resultErr = err
				j.Logger.Error("enqueue inventory pull", slog.String("workspace_id", cfg.WorkspaceID), slog.Any("error", err))
			} else {
				pulls++
			}
		}
	}

	j.Logger.Info("completed autosync sweep",
		slog.Int("schedules", len(configs)),
		slog.Int("pushes", pushes),
		slog.Int("pulls", pulls))
	return resultErr
}
