package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	InsertWorkflow(ctx context.Context, wf Workflow) (Workflow, error)
	GetWorkflow(ctx context.Context, workspaceID, id string) (Workflow, error)
	ListWorkflows(ctx context.Context, workspaceID string) ([]Workflow, error)
	InsertTask(ctx context.Context, t Task) (Task, error)
	GetTask(ctx context.Context, workspaceID, id string) (Task, error)
	ListTasks(ctx context.Context, workspaceID, workflowID string) ([]Task, error)
	MoveTask(ctx context.Context, workspaceID, id, stageID string, status StageCategory) error
	DeleteTask(ctx context.Context, workspaceID, id string) error
}

// Service coordinates Kanban operations.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// StageInput describes one stage of a new workflow.
type StageInput struct {
	Name     string
	Category StageCategory
}

// CreateWorkflow stores a workflow; each stage must carry a valid category.
func (s *Service) CreateWorkflow(ctx context.Context, workspaceID, name string, stages []StageInput) (Workflow, error) {
	wf := Workflow{ID: uuid.NewString(), WorkspaceID: workspaceID, Name: name}
	for i, stage := range stages {
		if !ValidCategory(stage.Category) {
			return Workflow{}, ErrInvalidCategory
		}
		wf.Stages = append(wf.Stages, Stage{
			ID:         uuid.NewString(),
			WorkflowID: wf.ID,
			Name:       stage.Name,
			Category:   stage.Category,
			Position:   i,
		})
	}
	return s.repo.InsertWorkflow(ctx, wf)
}

// GetWorkflow fetches a workflow with stages.
func (s *Service) GetWorkflow(ctx context.Context, workspaceID, id string) (Workflow, error) {
	return s.repo.GetWorkflow(ctx, workspaceID, id)
}

// ListWorkflows lists workflows.
func (s *Service) ListWorkflows(ctx context.Context, workspaceID string) ([]Workflow, error) {
	return s.repo.ListWorkflows(ctx, workspaceID)
}

// TaskInput describes a new task.
type TaskInput struct {
	WorkflowID      string
	StageID         string
	Title           string
	Description     string
	ProductID       string
	PurchaseOrderID string
	AssigneeID      string
	DueAt           time.Time
}

// CreateTask stores a task; its status mirrors the stage's category.
func (s *Service) CreateTask(ctx context.Context, workspaceID string, input TaskInput) (Task, error) {
	stage, err := s.findStage(ctx, workspaceID, input.WorkflowID, input.StageID)
	if err != nil {
		return Task{}, err
	}
	t := Task{
		ID:              uuid.NewString(),
		WorkspaceID:     workspaceID,
		WorkflowID:      input.WorkflowID,
		StageID:         stage.ID,
		Status:          stage.Category,
		Title:           input.Title,
		Description:     input.Description,
		ProductID:       input.ProductID,
		PurchaseOrderID: input.PurchaseOrderID,
		AssigneeID:      input.AssigneeID,
		DueAt:           input.DueAt,
	}
	return s.repo.InsertTask(ctx, t)
}

// MoveTask moves a task to another stage; the task status follows the stage
// category.
func (s *Service) MoveTask(ctx context.Context, workspaceID, taskID, stageID string) (Task, error) {
	task, err := s.repo.GetTask(ctx, workspaceID, taskID)
	if err != nil {
		return Task{}, err
	}
	stage, err := s.findStage(ctx, workspaceID, task.WorkflowID, stageID)
	if err != nil {
		return Task{}, err
	}
	if err := s.repo.MoveTask(ctx, workspaceID, taskID, stage.ID, stage.Category); err != nil {
		return Task{}, err
	}
	task.StageID = stage.ID
	task.Status = stage.Category
	return task, nil
}

// ListTasks lists the board for a workflow.
func (s *Service) ListTasks(ctx context.Context, workspaceID, workflowID string) ([]Task, error) {
	return s.repo.ListTasks(ctx, workspaceID, workflowID)
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, workspaceID, id string) error {
	return s.repo.DeleteTask(ctx, workspaceID, id)
}

func (s *Service) findStage(ctx context.Context, workspaceID, workflowID, stageID string) (Stage, error) {
	wf, err := s.repo.GetWorkflow(ctx, workspaceID, workflowID)
	if err != nil {
		return Stage{}, err
	}
	for _, stage := range wf.Stages {
		if stage.ID == stageID {
			return stage, nil
		}
	}
	return Stage{}, ErrStageNotFound
}
