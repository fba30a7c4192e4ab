package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stockpilot/stockpilot/internal/jobs"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// idempotencyRetention is how long a processed key stays on record. Requests
// older than this may be replayed; clients are expected to retry well within
// the window.
const idempotencyRetention = 48 * time.Hour

// IdempotencyCleanupJob prunes aged idempotency keys so the table stays small.
type IdempotencyCleanupJob struct {
	Store   *shared.IdempotencyStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob wires dependencies for the cleanup handler.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskIdempotencyCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := j.Store.Cleanup(ctx, idempotencyRetention); err != nil {
		resultErr = err
		j.Logger.Error("prune idempotency keys", slog.Any("error", err))
		return resultErr
	}
	j.Logger.Info("idempotency keys pruned", slog.Duration("retention", idempotencyRetention))
	return nil
}
