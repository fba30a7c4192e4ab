package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueSync carries QuickBooks traffic so a slow import cannot starve
	// the rest of the queue.
	QueueSync = "sync"

	// TaskQuickBooksImport runs a product import for one workspace.
	TaskQuickBooksImport = "qb:import"
	// TaskQuickBooksProductPush pushes local products to QuickBooks.
	TaskQuickBooksProductPush = "qb:sync:products"
	// TaskQuickBooksInventoryPull pulls item quantities from QuickBooks.
	TaskQuickBooksInventoryPull = "qb:sync:inventory"
	// TaskAutoSyncSweep enqueues due sync tasks across workspaces.
	TaskAutoSyncSweep = "qb:autosync:sweep"
	// TaskReportCacheWarmup pre-populates the product cache per workspace.
	TaskReportCacheWarmup = "reports:cache:warmup"
	// TaskIdempotencyCleanup prunes aged idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency:cleanup"
)

// ImportPayload identifies one import job run.
type ImportPayload struct {
	WorkspaceID string   `json:"workspace_id"`
	JobID       string   `json:"job_id"`
	AllowedSKUs []string `json:"allowed_skus,omitempty"`
}

// SyncPayload identifies a one-off sync run for a workspace.
type SyncPayload struct {
	WorkspaceID string `json:"workspace_id"`
}

// NewImportTask constructs an Asynq task for a QuickBooks import.
func NewImportTask(payload ImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuickBooksImport, data, asynq.Queue(QueueSync)), nil
}

// NewProductPushTask constructs a product push task.
func NewProductPushTask(workspaceID string) (*asynq.Task, error) {
	data, err := json.Marshal(SyncPayload{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuickBooksProductPush, data, asynq.Queue(QueueSync)), nil
}

// NewInventoryPullTask constructs an inventory pull task.
func NewInventoryPullTask(workspaceID string) (*asynq.Task, error) {
	data, err := json.Marshal(SyncPayload{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuickBooksInventoryPull, data, asynq.Queue(QueueSync)), nil
}

// NewAutoSyncSweepTask constructs the recurring sweep task.
func NewAutoSyncSweepTask() *asynq.Task {
	return asynq.NewTask(TaskAutoSyncSweep, nil, asynq.Queue(QueueDefault))
}

// NewReportCacheWarmupTask constructs the recurring warmup task.
func NewReportCacheWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskReportCacheWarmup, nil, asynq.Queue(QueueDefault))
}

// NewIdempotencyCleanupTask constructs the recurring key pruning task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueImport enqueues a QuickBooks import for a prepared job record.
func (c *Client) EnqueueImport(ctx context.Context, workspaceID, jobID string, allowedSKUs []string) error {
	task, err := NewImportTask(ImportPayload{WorkspaceID: workspaceID, JobID: jobID, AllowedSKUs: allowedSKUs})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}

// EnqueueProductPush enqueues a product push for a workspace.
func (c *Client) EnqueueProductPush(ctx context.Context, workspaceID string) error {
	task, err := NewProductPushTask(workspaceID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}

// EnqueueInventoryPull enqueues an inventory pull for a workspace.
func (c *Client) EnqueueInventoryPull(ctx context.Context, workspaceID string) error {
	task, err := NewInventoryPullTask(workspaceID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
