package tasks

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// Handler wires HTTP endpoints for the tasks module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs tasks handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers workflow and task routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", h.listWorkflows)
		r.Post("/", h.createWorkflow)
		r.Get("/{id}", h.getWorkflow)
		r.Get("/{id}/tasks", h.listTasks)
	})
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.createTask)
		r.Post("/{id}/move", h.moveTask)
		r.Delete("/{id}", h.deleteTask)
	})
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrWorkflowNotFound), errors.Is(err, ErrStageNotFound), errors.Is(err, ErrTaskNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidCategory):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

type workflowForm struct {
	Name   string `json:"name"`
	Stages []struct {
		Name     string `json:"name"`
		Category string `json:"category"`
	} `json:"stages"`
}

func (h *Handler) createWorkflow(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form workflowForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if form.Name == "" || len(form.Stages) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name and stages required")
		return
	}
	var stages []StageInput
	for _, s := range form.Stages {
		stages = append(stages, StageInput{Name: s.Name, Category: StageCategory(s.Category)})
	}
	wf, err := h.service.CreateWorkflow(r.Context(), ws, form.Name, stages)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, wf)
}

func (h *Handler) listWorkflows(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	workflows, err := h.service.ListWorkflows(r.Context(), ws)
	if err != nil {
		h.logger.Error("list workflows", slog.Any("error", err))
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, workflows)
}

func (h *Handler) getWorkflow(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	wf, err := h.service.GetWorkflow(r.Context(), ws, chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, wf)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	board, err := h.service.ListTasks(r.Context(), ws, chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, board)
}

type taskForm struct {
	WorkflowID      string     `json:"workflow_id"`
	StageID         string     `json:"stage_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ProductID       string     `json:"product_id"`
	PurchaseOrderID string     `json:"purchase_order_id"`
	AssigneeID      string     `json:"assignee_id"`
	DueAt           *time.Time `json:"due_at"`
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form taskForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if form.Title == "" || form.WorkflowID == "" || form.StageID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "title, workflow_id and stage_id required")
		return
	}
	input := TaskInput{
		WorkflowID:      form.WorkflowID,
		StageID:         form.StageID,
		Title:           form.Title,
		Description:     form.Description,
		ProductID:       form.ProductID,
		PurchaseOrderID: form.PurchaseOrderID,
		AssigneeID:      form.AssigneeID,
	}
	if form.DueAt != nil {
		input.DueAt = *form.DueAt
	}
	task, err := h.service.CreateTask(r.Context(), ws, input)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, task)
}

type moveForm struct {
	StageID string `json:"stage_id"`
}

func (h *Handler) moveTask(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form moveForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	task, err := h.service.MoveTask(r.Context(), ws, chi.URLParam(r, "id"), form.StageID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if err := h.service.DeleteTask(r.Context(), ws, chi.URLParam(r, "id")); err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
