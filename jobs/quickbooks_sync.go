package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockpilot/stockpilot/internal/catalog"
	jobmetrics "github.com/stockpilot/stockpilot/internal/jobs"
	"github.com/stockpilot/stockpilot/internal/quickbooks"
)

// SyncStore is the connection and schedule persistence sync jobs need.
type SyncStore interface {
	GetConnection(ctx context.Context, workspaceID string) (quickbooks.Connection, error)
	MarkProductRun(ctx context.Context, workspaceID string, at time.Time) error
	MarkInventoryRun(ctx context.Context, workspaceID string, at time.Time) error
}

// ItemPusher pushes local product data into QuickBooks.
type ItemPusher interface {
	PushItem(ctx context.Context, conn quickbooks.Connection, name, sku string, unitPrice float64) error
	ListItems(ctx context.Context, conn quickbooks.Connection) ([]quickbooks.Item, error)
}

// ProductReader lists and updates local products for sync runs.
type ProductReader interface {
	ListProducts(ctx context.Context, workspaceID string, filter catalog.ProductFilter) ([]catalog.Product, error)
	GetProductBySKU(ctx context.Context, workspaceID, sku string) (catalog.Product, error)
	UpdateProduct(ctx context.Context, p catalog.Product) error
}

// CacheBumper invalidates the workspace product cache after a pull.
type CacheBumper interface {
	Bump(ctx context.Context, workspaceID string) error
}

// ProductPushJob mirrors local products into QuickBooks.
type ProductPushJob struct {
	Store    SyncStore
	Client   ItemPusher
	Products ProductReader
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewProductPushJob wires dependencies for the push handler.
func NewProductPushJob(store SyncStore, client ItemPusher, products ProductReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *ProductPushJob {
	return &ProductPushJob{Store: store, Client: client, Products: products, Logger: logger, Metrics: metrics}
}

// Handle processes TaskQuickBooksProductPush tasks. Items QuickBooks already
// knows by SKU are left alone; only missing ones are created.
func (j *ProductPushJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("quickbooks push: handler not configured")
	}
	var payload SyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskQuickBooksProductPush)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger.With(slog.String("workspace_id", payload.WorkspaceID))

	conn, err := j.Store.GetConnection(ctx, payload.WorkspaceID)
	if err != nil {
		if errors.Is(err, quickbooks.ErrNotConnected) {
			logger.Warn("skipping product push, workspace disconnected")
			return nil
		}
		resultErr = err
		return resultErr
	}
	remote, err := j.Client.ListItems(ctx, conn)
	if err != nil {
		resultErr = err
		return resultErr
	}
	known := make(map[string]bool, len(remote))
	for _, item := range remote {
		if item.SKU != "" {
			known[item.SKU] = true
		}
	}

	products, err := j.Products.ListProducts(ctx, payload.WorkspaceID, catalog.ProductFilter{})
	if err != nil {
		resultErr = err
		return resultErr
	}
	pushed := 0
	for _, p := range products {
		if p.SKU == "" || known[p.SKU] {
			continue
		}
		if err := j.Client.PushItem(ctx, conn, p.Name, p.SKU, p.PricePerBox); err != nil {
			logger.Error("push product", slog.String("sku", p.SKU), slog.Any("error", err))
			resultErr = err
			continue
		}
		pushed++
	}

	if err := j.Store.MarkProductRun(ctx, payload.WorkspaceID, time.Now()); err != nil {
		logger.Warn("stamp product push run", slog.Any("error", err))
	}
	logger.Info("completed product push", slog.Int("pushed", pushed), slog.Int("total", len(products)))
	return resultErr
}

// InventoryPullJob refreshes local quantities from QuickBooks item counts.
type InventoryPullJob struct {
	Store    SyncStore
	Client   ItemPusher
	Products ProductReader
	Cache    CacheBumper
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewInventoryPullJob wires dependencies for the pull handler.
func NewInventoryPullJob(store SyncStore, client ItemPusher, products ProductReader, cache CacheBumper, logger *slog.Logger, metrics *jobmetrics.Metrics) *InventoryPullJob {
	return &InventoryPullJob{Store: store, Client: client, Products: products, Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes TaskQuickBooksInventoryPull tasks.
func (j *InventoryPullJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("quickbooks pull: handler not configured")
	}
	var payload SyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskQuickBooksInventoryPull)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger.With(slog.String("workspace_id", payload.WorkspaceID))

	conn, err := j.Store.GetConnection(ctx, payload.WorkspaceID)
	if err != nil {
		if errors.Is(err, quickbooks.ErrNotConnected) {
			logger.Warn("skipping inventory pull, workspace disconnected")
			return nil
		}
		resultErr = err
		return resultErr
	}
	items, err := j.Client.ListItems(ctx, conn)
	if err != nil {
		resultErr = err
		return resultErr
	}

	updated := 0
	for _, item := range items {
		if item.SKU == "" {
			continue
		}
		p, err := j.Products.GetProductBySKU(ctx, payload.WorkspaceID, item.SKU)
		if errors.Is(err, catalog.ErrProductNotFound) {
			continue
		}
		if err != nil {
			resultErr = err
			logger.Error("load product for pull", slog.String("sku", item.SKU), slog.Any("error", err))
			continue
		}
		qty := int(item.QtyOnHand)
		if p.QuantityBox == qty {
			continue
		}
		p.QuantityBox = qty
		if err := j.Products.UpdateProduct(ctx, p); err != nil {
			resultErr = err
			logger.Error("update product quantity", slog.String("sku", item.SKU), slog.Any("error", err))
			continue
		}
		updated++
	}

	if updated > 0 && j.Cache != nil {
		if err := j.Cache.Bump(ctx, payload.WorkspaceID); err != nil {
			logger.Warn("bump product cache", slog.Any("error", err))
		}
	}
	if err := j.Store.MarkInventoryRun(ctx, payload.WorkspaceID, time.Now()); err != nil {
		logger.Warn("stamp inventory pull run", slog.Any("error", err))
	}
	logger.Info("completed inventory pull", slog.Int("updated", updated), slog.Int("items", len(items)))
	return resultErr
}
