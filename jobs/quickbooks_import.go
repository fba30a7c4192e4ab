package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/stockpilot/stockpilot/internal/catalog"
	jobmetrics "github.com/stockpilot/stockpilot/internal/jobs"
	"github.com/stockpilot/stockpilot/internal/quickbooks"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ImportStore is the job-record and connection persistence the runner needs.
type ImportStore interface {
	GetJob(ctx context.Context, workspaceID, jobID string) (quickbooks.ImportJob, error)
	UpdateJobProgress(ctx context.Context, job quickbooks.ImportJob, newItems []quickbooks.ItemLog) error
	FinishJob(ctx context.Context, workspaceID, jobID string, status quickbooks.JobStatus, errorMessage string) error
	GetConnection(ctx context.Context, workspaceID string) (quickbooks.Connection, error)
}

// ItemSource lists QuickBooks inventory items.
type ItemSource interface {
	ListItems(ctx context.Context, conn quickbooks.Connection) ([]quickbooks.Item, error)
}

// ProductStore upserts imported products into the catalog.
type ProductStore interface {
	GetProductBySKU(ctx context.Context, workspaceID, sku string) (catalog.Product, error)
	InsertProduct(ctx context.Context, p catalog.Product) (catalog.Product, error)
	UpdateProduct(ctx context.Context, p catalog.Product) error
}

// SnapshotPublisher emits progress snapshots for watchers.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap quickbooks.Snapshot) error
}

// ImportJob works through a QuickBooks item import: pull, filter, upsert,
// publish progress, record the terminal status.
type ImportJob struct {
	Store     ImportStore
	Items     ItemSource
	Products  ProductStore
	Publisher SnapshotPublisher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewImportJob wires dependencies for the import handler.
func NewImportJob(store ImportStore, items ItemSource, products ProductStore, publisher SnapshotPublisher, logger *slog.Logger, metrics *jobmetrics.Metrics) *ImportJob {
	return &ImportJob{Store: store, Items: items, Products: products, Publisher: publisher, Logger: logger, Metrics: metrics}
}

func (j *ImportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// Handle processes TaskQuickBooksImport tasks.
func (j *ImportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("quickbooks import: handler not configured")
	}
	var payload ImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskQuickBooksImport)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger.With(slog.String("workspace_id", payload.WorkspaceID), slog.String("job_id", payload.JobID))
	logger.Info("starting quickbooks import")

	resultErr = j.run(ctx, payload, logger)
	return resultErr
}

func (j *ImportJob) run(ctx context.Context, payload ImportPayload, logger *slog.Logger) error {
	job, err := j.Store.GetJob(ctx, payload.WorkspaceID, payload.JobID)
	if err != nil {
		logger.Error("load import job", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if job.Status.Terminal() {
		logger.Warn("import job already terminal", slog.String("status", string(job.Status)))
		return nil
	}

	conn, err := j.Store.GetConnection(ctx, payload.WorkspaceID)
	if err != nil {
		return j.fail(ctx, job, "workspace is not connected to QuickBooks", err, logger)
	}
	items, err := j.Items.ListItems(ctx, conn)
	if err != nil {
		return j.fail(ctx, job, "listing QuickBooks items failed: "+err.Error(), err, logger)
	}

	allowed := allowSet(payload.AllowedSKUs)
	if allowed == nil {
		allowed = allowSet(job.AllowedSKUs)
	}
	filtered := items[:0:0]
	for _, item := range items {
		if allowed != nil && !allowed[item.SKU] {
			continue
		}
		filtered = append(filtered, item)
	}

	total := len(filtered)
	job.TotalItems = &total
	if err := j.Store.UpdateJobProgress(ctx, job, nil); err != nil {
		return j.fail(ctx, job, "persisting item total failed", err, logger)
	}
	j.publish(ctx, job, logger)

	for _, item := range filtered {
		entry := j.importItem(ctx, job.WorkspaceID, item)
		job.Processed++
		switch entry.Action {
		case quickbooks.ActionImported:
			job.Imported++
		case quickbooks.ActionUpdated:
			job.Updated++
		case quickbooks.ActionSkipped:
			job.Skipped++
		case quickbooks.ActionError:
			job.Errors++
		}
		j.metrics().AddImportOutcome(string(entry.Action), 1)
		if err := j.Store.UpdateJobProgress(ctx, job, []quickbooks.ItemLog{entry}); err != nil {
			return j.fail(ctx, job, "persisting import progress failed", err, logger)
		}
		j.publish(ctx, job, logger)
	}

	if err := j.Store.FinishJob(ctx, job.WorkspaceID, job.ID, quickbooks.JobSuccess, ""); err != nil {
		logger.Error("finish import job", slog.Any("error", err))
		return err
	}
	job.Status = quickbooks.JobSuccess
	j.publish(ctx, job, logger)

	logger.Info("completed quickbooks import",
		slog.Int("processed", job.Processed),
		slog.Int("imported", job.Imported),
		slog.Int("updated", job.Updated),
		slog.Int("skipped", job.Skipped),
		slog.Int("errors", job.Errors))
	return nil
}

// importItem upserts one QuickBooks item into the catalog. Item-level
// failures are recorded in the log and do not abort the run.
func (j *ImportJob) importItem(ctx context.Context, workspaceID string, item quickbooks.Item) quickbooks.ItemLog {
	entry := quickbooks.ItemLog{SKU: item.SKU, Name: item.Name}
	if item.SKU == "" || !item.Active {
		entry.Action = quickbooks.ActionSkipped
		if item.SKU == "" {
			entry.Message = "item has no SKU"
		} else {
			entry.Message = "item is inactive"
		}
		return entry
	}

	existing, err := j.Products.GetProductBySKU(ctx, workspaceID, item.SKU)
	switch {
	case err == nil:
		existing.Name = item.Name
		existing.QuantityBox = int(item.QtyOnHand)
		existing.PricePerBox = item.UnitPrice
		if err := j.Products.UpdateProduct(ctx, existing); err != nil {
			entry.Action = quickbooks.ActionError
			entry.Message = err.Error()
			return entry
		}
		entry.Action = quickbooks.ActionUpdated
	case errors.Is(err, catalog.ErrProductNotFound):
		p := catalog.Product{
			ID:          uuid.NewString(),
			WorkspaceID: workspaceID,
			SKU:         item.SKU,
			Name:        item.Name,
			QuantityBox: int(item.QtyOnHand),
			PricePerBox: item.UnitPrice,
			PcsPerBox:   1,
		}
		if _, err := j.Products.InsertProduct(ctx, p); err != nil {
			entry.Action = quickbooks.ActionError
			entry.Message = err.Error()
			return entry
		}
		entry.Action = quickbooks.ActionImported
	default:
		entry.Action = quickbooks.ActionError
		entry.Message = err.Error()
	}
	return entry
}

func (j *ImportJob) fail(ctx context.Context, job quickbooks.ImportJob, message string, cause error, logger *slog.Logger) error {
	logger.Error("quickbooks import failed", slog.String("message", message), slog.Any("error", cause))
	if err := j.Store.FinishJob(ctx, job.WorkspaceID, job.ID, quickbooks.JobFailed, message); err != nil {
		logger.Error("record import failure", slog.Any("error", err))
	}
	job.Status = quickbooks.JobFailed
	job.ErrorMessage = message
	j.publish(ctx, job, logger)
	return cause
}

func (j *ImportJob) publish(ctx context.Context, job quickbooks.ImportJob, logger *slog.Logger) {
	if j.Publisher == nil {
		return
	}
	if err := j.Publisher.Publish(ctx, quickbooks.SnapshotOf(job)); err != nil {
		logger.Warn("publish import snapshot", slog.Any("error", err))
	}
}

func allowSet(skus []string) map[string]bool {
	if len(skus) == 0 {
		return nil
	}
	set := make(map[string]bool, len(skus))
	for _, sku := range skus {
		set[sku] = true
	}
	return set
}
