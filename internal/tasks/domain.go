package tasks

import (
	"errors"
	"time"
)

// StageCategory classifies a workflow stage; task status mirrors it.
type StageCategory string

const (
	CategoryOpen       StageCategory = "OPEN"
	CategoryInProgress StageCategory = "IN_PROGRESS"
	CategoryBlocked    StageCategory = "BLOCKED"
	CategoryDone       StageCategory = "DONE"
)

// ValidCategory reports whether the category is one of the known values.
func ValidCategory(c StageCategory) bool {
	switch c {
	case CategoryOpen, CategoryInProgress, CategoryBlocked, CategoryDone:
		return true
	}
	return false
}

// Workflow is an ordered set of stages forming a Kanban board.
type Workflow struct {
	ID          string
	WorkspaceID string
	Name        string
	Stages      []Stage
	CreatedAt   time.Time
}

// Stage is one column on the board.
type Stage struct {
	ID         string
	WorkflowID string
	Name       string
	Category   StageCategory
	Position   int
}

// Task is a unit of work on a board, optionally linked to a product or a
// purchase order.
type Task struct {
	ID              string
	WorkspaceID     string
	WorkflowID      string
	StageID         string
	Status          StageCategory
	Title           string
	Description     string
	ProductID       string
	PurchaseOrderID string
	AssigneeID      string
	DueAt           time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	// ErrWorkflowNotFound indicates an unknown workflow.
	ErrWorkflowNotFound = errors.New("tasks: workflow not found")
	// ErrStageNotFound indicates an unknown stage within a workflow.
	ErrStageNotFound = errors.New("tasks: stage not found")
	// ErrTaskNotFound indicates an unknown task.
	ErrTaskNotFound = errors.New("tasks: task not found")
	// ErrInvalidCategory indicates a stage with an unknown category.
	ErrInvalidCategory = errors.New("tasks: invalid stage category")
)
