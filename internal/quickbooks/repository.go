package quickbooks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists QuickBooks connections, import jobs and auto-sync
// schedules in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveConnection upserts the OAuth connection for a workspace.
func (r *Repository) SaveConnection(ctx context.Context, conn Connection) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO quickbooks_connections (workspace_id, realm_id, access_token, refresh_token, expires_at, connected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workspace_id) DO UPDATE SET
			realm_id = EXCLUDED.realm_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			connected_at = EXCLUDED.connected_at`,
		conn.WorkspaceID, conn.RealmID, conn.AccessToken, conn.RefreshToken, conn.ExpiresAt, conn.ConnectedAt)
	return err
}

// GetConnection loads the workspace connection.
func (r *Repository) GetConnection(ctx context.Context, workspaceID string) (Connection, error) {
	var conn Connection
	err := r.pool.QueryRow(ctx, `SELECT workspace_id, realm_id, access_token, refresh_token, expires_at, connected_at
		FROM quickbooks_connections WHERE workspace_id = $1`, workspaceID).
		Scan(&conn.WorkspaceID, &conn.RealmID, &conn.AccessToken, &conn.RefreshToken, &conn.ExpiresAt, &conn.ConnectedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Connection{}, ErrNotConnected
	}
	if err != nil {
		return Connection{}, err
	}
	return conn, nil
}

// DeleteConnection disconnects the workspace.
func (r *Repository) DeleteConnection(ctx context.Context, workspaceID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM quickbooks_connections WHERE workspace_id = $1`, workspaceID)
	return err
}

// InsertJob stores the initial running job record.
func (r *Repository) InsertJob(ctx context.Context, job ImportJob) error {
	skus, err := json.Marshal(job.AllowedSKUs)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO quickbooks_import_jobs
		(id, workspace_id, status, processed, total_items, imported, updated, skipped, errors, allowed_skus, error_message, items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, '[]'::jsonb, $12)`,
		job.ID, job.WorkspaceID, job.Status, job.Processed, job.TotalItems,
		job.Imported, job.Updated, job.Skipped, job.Errors, skus, job.ErrorMessage, job.CreatedAt)
	return err
}

// GetJob loads one import job including its item log.
func (r *Repository) GetJob(ctx context.Context, workspaceID, jobID string) (ImportJob, error) {
	var (
		job      ImportJob
		skus     []byte
		items    []byte
		finished *time.Time
	)
	err := r.pool.QueryRow(ctx, `SELECT id, workspace_id, status, processed, total_items, imported, updated, skipped, errors,
			allowed_skus, COALESCE(error_message, ''), items, created_at, finished_at
		FROM quickbooks_import_jobs WHERE workspace_id = $1 AND id = $2`, workspaceID, jobID).
		Scan(&job.ID, &job.WorkspaceID, &job.Status, &job.Processed, &job.TotalItems,
			&job.Imported, &job.Updated, &job.Skipped, &job.Errors,
			&skus, &job.ErrorMessage, &items, &job.CreatedAt, &finished)
	if errors.Is(err, pgx.ErrNoRows) {
		return ImportJob{}, ErrJobNotFound
	}
	if err != nil {
		return ImportJob{}, err
	}
	job.FinishedAt = finished
	if len(skus) > 0 {
		if err := json.Unmarshal(skus, &job.AllowedSKUs); err != nil {
			return ImportJob{}, err
		}
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &job.Items); err != nil {
			return ImportJob{}, err
		}
	}
	return job, nil
}

// ListJobs returns the newest jobs for a workspace.
func (r *Repository) ListJobs(ctx context.Context, workspaceID string, limit int) ([]ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, workspace_id, status, processed, total_items, imported, updated, skipped, errors,
			COALESCE(error_message, ''), created_at, finished_at
		FROM quickbooks_import_jobs WHERE workspace_id = $1 ORDER BY created_at DESC LIMIT $2`, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]ImportJob, 0)
	for rows.Next() {
		var job ImportJob
		if err := rows.Scan(&job.ID, &job.WorkspaceID, &job.Status, &job.Processed, &job.TotalItems,
			&job.Imported, &job.Updated, &job.Skipped, &job.Errors,
			&job.ErrorMessage, &job.CreatedAt, &job.FinishedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJobProgress persists the runner's counters and appends item log
// entries. Only running jobs accept progress updates.
func (r *Repository) UpdateJobProgress(ctx context.Context, job ImportJob, newItems []ItemLog) error {
	entries, err := json.Marshal(newItems)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE quickbooks_import_jobs SET
			processed = $3, total_items = $4, imported = $5, updated = $6, skipped = $7, errors = $8,
			items = items || $9::jsonb
		WHERE workspace_id = $1 AND id = $2 AND status = 'running'`,
		job.WorkspaceID, job.ID, job.Processed, job.TotalItems,
		job.Imported, job.Updated, job.Skipped, job.Errors, entries)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotRunning
	}
	return nil
}

// FinishJob records the terminal status exactly once.
func (r *Repository) FinishJob(ctx context.Context, workspaceID, jobID string, status JobStatus, errorMessage string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE quickbooks_import_jobs SET status = $3, error_message = NULLIF($4, ''), finished_at = $5
		WHERE workspace_id = $1 AND id = $2 AND status = 'running'`,
		workspaceID, jobID, status, errorMessage, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotRunning
	}
	return nil
}

// GetAutoSync loads the workspace schedule, defaulting both kinds to off.
func (r *Repository) GetAutoSync(ctx context.Context, workspaceID string) (AutoSyncConfig, error) {
	var cfg AutoSyncConfig
	err := r.pool.QueryRow(ctx, `SELECT workspace_id, product_push, inventory_pull, last_product_run, last_inventory_run, updated_at
		FROM quickbooks_autosync WHERE workspace_id = $1`, workspaceID).
		Scan(&cfg.WorkspaceID, &cfg.ProductPush, &cfg.InventoryPull, &cfg.LastProductRun, &cfg.LastInventoryRun, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return AutoSyncConfig{WorkspaceID: workspaceID, ProductPush: IntervalOff, InventoryPull: IntervalOff}, nil
	}
	if err != nil {
		return AutoSyncConfig{}, err
	}
	return cfg, nil
}

// SaveAutoSync upserts the schedule. Last-run timestamps are preserved.
func (r *Repository) SaveAutoSync(ctx context.Context, cfg AutoSyncConfig) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO quickbooks_autosync (workspace_id, product_push, inventory_pull, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workspace_id) DO UPDATE SET
			product_push = EXCLUDED.product_push,
			inventory_pull = EXCLUDED.inventory_pull,
			updated_at = EXCLUDED.updated_at`,
		cfg.WorkspaceID, cfg.ProductPush, cfg.InventoryPull, time.Now())
	return err
}

// ListAutoSync returns every workspace with at least one schedule enabled.
func (r *Repository) ListAutoSync(ctx context.Context) ([]AutoSyncConfig, error) {
	rows, err := r.pool.Query(ctx, `SELECT workspace_id, product_push, inventory_pull, last_product_run, last_inventory_run, updated_at
		FROM quickbooks_autosync WHERE product_push <> 'off' OR inventory_pull <> 'off'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := make([]AutoSyncConfig, 0)
	for rows.Next() {
		var cfg AutoSyncConfig
		if err := rows.Scan(&cfg.WorkspaceID, &cfg.ProductPush, &cfg.InventoryPull,
			&cfg.LastProductRun, &cfg.LastInventoryRun, &cfg.UpdatedAt); err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// MarkProductRun stamps the product push last-run time.
func (r *Repository) MarkProductRun(ctx context.Context, workspaceID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE quickbooks_autosync SET last_product_run = $2 WHERE workspace_id = $1`, workspaceID, at)
	return err
}

// MarkInventoryRun stamps the inventory pull last-run time.
func (r *Repository) MarkInventoryRun(ctx context.Context, workspaceID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE quickbooks_autosync SET last_inventory_run = $2 WHERE workspace_id = $1`, workspaceID, at)
	return err
}
