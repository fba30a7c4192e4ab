package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// Reference record endpoints. These are plain pass-throughs to the
// repository; errors are propagated unchanged.

type groupForm struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	groups, err := h.refs.ListGroups(r.Context(), ws)
	if err != nil {
		h.logger.Error("list groups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form groupForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if form.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name required")
		return
	}
	group, err := h.refs.CreateGroup(r.Context(), Group{ID: uuid.NewString(), WorkspaceID: ws, Name: form.Name, ParentID: form.ParentID})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form groupForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	g := Group{ID: chi.URLParam(r, "id"), WorkspaceID: ws, Name: form.Name, ParentID: form.ParentID}
	if err := h.refs.UpdateGroup(r.Context(), g); err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "group not found")
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if err := h.refs.DeleteGroup(r.Context(), ws, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type namedForm struct {
	Name       string `json:"name"`
	Abbrev     string `json:"abbrev"`
	CategoryID string `json:"category_id"`
	FieldType  string `json:"field_type"`
	Direction  string `json:"direction"`
}

func (h *Handler) listUOMs(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	uoms, err := h.refs.ListUOMs(r.Context(), ws)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, uoms)
}

func (h *Handler) createUOM(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form namedForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if form.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name required")
		return
	}
	uom, err := h.refs.CreateUOM(r.Context(), UOM{ID: uuid.NewString(), WorkspaceID: ws, Name: form.Name, Abbrev: form.Abbrev})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, uom)
}

func (h *Handler) deleteUOM(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if err := h.refs.DeleteUOM(r.Context(), ws, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	categories, err := h.refs.ListCategories(r.Context(), ws)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form namedForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if form.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name required")
		return
	}
	category, err := h.refs.CreateCategory(r.Context(), Category{ID: uuid.NewString(), WorkspaceID: ws, Name: form.Name})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if err := h.refs.DeleteCategory(r.Context(), ws, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSubcategories(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	subs, err := h.refs.ListSubcategories(r.Context(), ws, r.URL.Query().Get("category_id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, subs)
}

func (h *Handler) createSubcategory(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form namedForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if form.Name == "" || form.CategoryID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name and category_id required")
		return
	}
	sub, err := h.refs.CreateSubcategory(r.Context(), Subcategory{ID: uuid.NewString(), WorkspaceID: ws, CategoryID: form.CategoryID, Name: form.Name})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sub)
}

func (h *Handler) deleteSubcategory(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if err := h.refs.DeleteSubcategory(r.Context(), ws, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCustomFields(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	fields, err := h.refs.ListCustomFields(r.Context(), ws)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fields)
}

func (h *Handler) createCustomField(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form namedForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if form.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name required")
		return
	}
	field, err := h.refs.CreateCustomField(r.Context(), CustomField{ID: uuid.NewString(), WorkspaceID: ws, Name: form.Name, FieldType: form.FieldType})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, field)
}

func (h *Handler) deleteCustomField(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if err := h.refs.DeleteCustomField(r.Context(), ws, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listStockReasons(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	reasons, err := h.refs.ListStockReasons(r.Context(), ws)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reasons)
}

func (h *Handler) createStockReason(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form namedForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if form.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name required")
		return
	}
	reason, err := h.refs.CreateStockReason(r.Context(), StockReason{ID: uuid.NewString(), WorkspaceID: ws, Name: form.Name, Direction: form.Direction})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reason)
}

func (h *Handler) deleteStockReason(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if err := h.refs.DeleteStockReason(r.Context(), ws, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
