package tasks

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	workflows map[string]Workflow
	tasks     map[string]Task
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{workflows: make(map[string]Workflow), tasks: make(map[string]Task)}
}

func (r *memoryRepo) InsertWorkflow(_ context.Context, wf Workflow) (Workflow, error) {
	r.workflows[wf.ID] = wf
	return wf, nil
}

func (r *memoryRepo) GetWorkflow(_ context.Context, workspaceID, id string) (Workflow, error) {
	wf, ok := r.workflows[id]
	if !ok || wf.WorkspaceID != workspaceID {
		return Workflow{}, ErrWorkflowNotFound
	}
	return wf, nil
}

func (r *memoryRepo) ListWorkflows(_ context.Context, workspaceID string) ([]Workflow, error) {
	var out []Workflow
	for _, wf := range r.workflows {
		if wf.WorkspaceID == workspaceID {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertTask(_ context.Context, t Task) (Task, error) {
	r.tasks[t.ID] = t
	return t, nil
}

func (r *memoryRepo) GetTask(_ context.Context, workspaceID, id string) (Task, error) {
	t, ok := r.tasks[id]
	if !ok || t.WorkspaceID != workspaceID {
		return Task{}, ErrTaskNotFound
	}
	return t, nil
}

func (r *memoryRepo) ListTasks(_ context.Context, workspaceID, workflowID string) ([]Task, error) {
	var out []Task
	for _, t := range r.tasks {
		if t.WorkspaceID == workspaceID && t.WorkflowID == workflowID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memoryRepo) MoveTask(_ context.Context, workspaceID, id, stageID string, status StageCategory) error {
	t, ok := r.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	t.StageID = stageID
	t.Status = status
	t.UpdatedAt = time.Now()
	r.tasks[id] = t
	return nil
}

func (r *memoryRepo) DeleteTask(_ context.Context, workspaceID, id string) error {
	if _, ok := r.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func newBoard(t *testing.T) (*Service, Workflow) {
	t.Helper()
	svc := NewService(newMemoryRepo(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	wf, err := svc.CreateWorkflow(context.Background(), "ws1", "Production", []StageInput{
		{Name: "Backlog", Category: CategoryOpen},
		{Name: "Assembly", Category: CategoryInProgress},
		{Name: "Waiting parts", Category: CategoryBlocked},
		{Name: "Shipped", Category: CategoryDone},
	})
	require.NoError(t, err)
	return svc, wf
}

func TestCreateWorkflowValidatesCategories(t *testing.T) {
	svc := NewService(newMemoryRepo(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := svc.CreateWorkflow(context.Background(), "ws1", "Bad", []StageInput{{Name: "X", Category: "WEIRD"}})
	require.ErrorIs(t, err, ErrInvalidCategory)
}

func TestTaskStatusMirrorsStage(t *testing.T) {
	svc, wf := newBoard(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, "ws1", TaskInput{
		WorkflowID: wf.ID,
		StageID:    wf.Stages[0].ID,
		Title:      "Build 20 units",
		ProductID:  "prod-1",
	})
	require.NoError(t, err)
	require.Equal(t, CategoryOpen, task.Status)

	task, err = svc.MoveTask(ctx, "ws1", task.ID, wf.Stages[1].ID)
	require.NoError(t, err)
	require.Equal(t, CategoryInProgress, task.Status)

	task, err = svc.MoveTask(ctx, "ws1", task.ID, wf.Stages[3].ID)
	require.NoError(t, err)
	require.Equal(t, CategoryDone, task.Status)
}

func TestMoveTaskUnknownStage(t *testing.T) {
	svc, wf := newBoard(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, "ws1", TaskInput{WorkflowID: wf.ID, StageID: wf.Stages[0].ID, Title: "T"})
	require.NoError(t, err)

	_, err = svc.MoveTask(ctx, "ws1", task.ID, "missing")
	require.ErrorIs(t, err, ErrStageNotFound)
}
