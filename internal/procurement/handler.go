package procurement

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// Handler wires HTTP endpoints for the procurement module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs procurement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/transition", h.transition)
	r.Post("/{id}/receipts", h.receive)
}

type lineForm struct {
	ProductID string  `json:"product_id"`
	QtyBoxes  int     `json:"qty_boxes"`
	UnitPrice float64 `json:"unit_price"`
}

type createForm struct {
	Number     string     `json:"number"`
	VendorID   string     `json:"vendor_id"`
	ShipToID   string     `json:"ship_to_id"`
	ExpectedAt *time.Time `json:"expected_at"`
	Note       string     `json:"note"`
	Lines      []lineForm `json:"lines"`
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrNotReceivable):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNoLines), errors.Is(err, ErrOverReceipt):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	orders, err := h.service.List(r.Context(), ws, POStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form createForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	input := CreateInput{
		Number:   form.Number,
		VendorID: form.VendorID,
		ShipToID: form.ShipToID,
		Note:     form.Note,
	}
	if form.ExpectedAt != nil {
		input.ExpectedAt = *form.ExpectedAt
	}
	for _, line := range form.Lines {
		input.Lines = append(input.Lines, LineInput{ProductID: line.ProductID, QtyBoxes: line.QtyBoxes, UnitPrice: line.UnitPrice})
	}
	po, err := h.service.Create(r.Context(), ws, input)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	po, err := h.service.Get(r.Context(), ws, chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

type transitionForm struct {
	Status string `json:"status"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form transitionForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	po, err := h.service.Transition(r.Context(), ws, chi.URLParam(r, "id"), POStatus(form.Status))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

type receiptForm struct {
	Lines []struct {
		ProductID string `json:"product_id"`
		QtyBoxes  int    `json:"qty_boxes"`
	} `json:"lines"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	var form receiptForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var receipt []ReceiptLine
	for _, line := range form.Lines {
		receipt = append(receipt, ReceiptLine{ProductID: line.ProductID, QtyBoxes: line.QtyBoxes})
	}
	po, err := h.service.Receive(r.Context(), ws, chi.URLParam(r, "id"), receipt)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}
