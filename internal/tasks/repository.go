package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists workflows, stages and tasks in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertWorkflow stores a workflow with its stages.
func (r *Repository) InsertWorkflow(ctx context.Context, wf Workflow) (Workflow, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Workflow{}, err
	}
	defer tx.Rollback(ctx)

	wf.CreatedAt = time.Now()
	_, err = tx.Exec(ctx, `INSERT INTO workflows (id, workspace_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		wf.ID, wf.WorkspaceID, wf.Name, wf.CreatedAt)
	if err != nil {
		return Workflow{}, err
	}
	for _, stage := range wf.Stages {
		_, err = tx.Exec(ctx, `INSERT INTO workflow_stages (id, workflow_id, name, category, position) VALUES ($1, $2, $3, $4, $5)`,
			stage.ID, wf.ID, stage.Name, stage.Category, stage.Position)
		if err != nil {
			return Workflow{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Workflow{}, err
	}
	return wf, nil
}

// GetWorkflow fetches a workflow with stages ordered by position.
func (r *Repository) GetWorkflow(ctx context.Context, workspaceID, id string) (Workflow, error) {
	var wf Workflow
	err := r.pool.QueryRow(ctx, `SELECT id, workspace_id, name, created_at FROM workflows WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id).Scan(&wf.ID, &wf.WorkspaceID, &wf.Name, &wf.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Workflow{}, ErrWorkflowNotFound
		}
		return Workflow{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, workflow_id, name, category, position FROM workflow_stages WHERE workflow_id = $1 ORDER BY position`, id)
	if err != nil {
		return Workflow{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var stage Stage
		if err := rows.Scan(&stage.ID, &stage.WorkflowID, &stage.Name, &stage.Category, &stage.Position); err != nil {
			return Workflow{}, err
		}
		wf.Stages = append(wf.Stages, stage)
	}
	return wf, rows.Err()
}

// ListWorkflows lists workflows for a workspace without stages.
func (r *Repository) ListWorkflows(ctx context.Context, workspaceID string) ([]Workflow, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, workspace_id, name, created_at FROM workflows WHERE workspace_id = $1 ORDER BY name`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []Workflow
	for rows.Next() {
		var wf Workflow
		if err := rows.Scan(&wf.ID, &wf.WorkspaceID, &wf.Name, &wf.CreatedAt); err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

const taskColumns = `id, workspace_id, workflow_id, stage_id, status, title, description,
	COALESCE(product_id, ''), COALESCE(purchase_order_id, ''), COALESCE(assignee_id, ''),
	COALESCE(due_at, 'epoch'), created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.WorkflowID, &t.StageID, &t.Status, &t.Title, &t.Description,
		&t.ProductID, &t.PurchaseOrderID, &t.AssigneeID, &t.DueAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// InsertTask stores a task.
func (r *Repository) InsertTask(ctx context.Context, t Task) (Task, error) {
	now := time.Now()
	_, err := r.pool.Exec(ctx, `INSERT INTO tasks (id, workspace_id, workflow_id, stage_id, status, title, description,
		product_id, purchase_order_id, assignee_id, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, 'epoch'::timestamptz), $12, $12)`,
		t.ID, t.WorkspaceID, t.WorkflowID, t.StageID, t.Status, t.Title, t.Description,
		t.ProductID, t.PurchaseOrderID, t.AssigneeID, t.DueAt, now)
	if err != nil {
		return Task{}, err
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	return t, nil
}

// GetTask fetches one task.
func (r *Repository) GetTask(ctx context.Context, workspaceID, id string) (Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE workspace_id = $1 AND id = $2`
	t, err := scanTask(r.pool.QueryRow(ctx, query, workspaceID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrTaskNotFound
	}
	return t, err
}

// ListTasks lists tasks on a workflow.
func (r *Repository) ListTasks(ctx context.Context, workspaceID, workflowID string) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE workspace_id = $1 AND workflow_id = $2 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, workspaceID, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MoveTask changes stage and status together.
func (r *Repository) MoveTask(ctx context.Context, workspaceID, id, stageID string, status StageCategory) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tasks SET stage_id = $1, status = $2, updated_at = $3 WHERE workspace_id = $4 AND id = $5`,
		stageID, status, time.Now(), workspaceID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task.
func (r *Repository) DeleteTask(ctx context.Context, workspaceID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}
