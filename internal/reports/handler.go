package reports

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// Handler wires HTTP endpoints for the reports module. Every report supports
// JSON output; the stock reports additionally export CSV via ?format=csv.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/stock-on-hand", h.stockOnHand)
		r.Get("/aging", h.aging)
		r.Get("/replenishment", h.replenishment)
		r.Get("/abc", h.abc)
		r.Get("/ledger", h.ledger)
		r.Get("/cycle-count", h.cycleCount)
		r.Get("/cogs", h.cogs)
		r.Get("/returns", h.returns)
	})
}

func parseFilters(r *http.Request) Filters {
	q := r.URL.Query()
	f := Filters{
		GroupID:    q.Get("group_id"),
		CategoryID: q.Get("category_id"),
	}
	if v, err := strconv.Atoi(q.Get("window_days")); err == nil && v > 0 {
		f.WindowDays = v
	}
	if v, err := strconv.Atoi(q.Get("review_period_days")); err == nil && v > 0 {
		f.ReviewPeriodDays = v
	}
	return f
}

func wantsCSV(r *http.Request) bool {
	return r.URL.Query().Get("format") == "csv"
}

func csvHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
}

func (h *Handler) stockOnHand(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if ws == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	rows, err := h.service.StockOnHand(r.Context(), ws, parseFilters(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if wantsCSV(r) {
		csvHeaders(w, "stock-on-hand")
		if err := WriteStockOnHandCSV(w, rows); err != nil {
			h.logger.Error("csv export failed", "report", "stock-on-hand", "error", err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if ws == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	rows, err := h.service.Aging(r.Context(), ws, parseFilters(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if wantsCSV(r) {
		csvHeaders(w, "aging")
		if err := WriteAgingCSV(w, rows); err != nil {
			h.logger.Error("csv export failed", "report", "aging", "error", err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) replenishment(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if ws == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	rows, err := h.service.Replenishment(r.Context(), ws, parseFilters(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if wantsCSV(r) {
		csvHeaders(w, "replenishment")
		if err := WriteReplenishmentCSV(w, rows); err != nil {
			h.logger.Error("csv export failed", "report", "replenishment", "error", err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) abc(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if ws == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	rows, err := h.service.ABC(r.Context(), ws, parseFilters(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if wantsCSV(r) {
		csvHeaders(w, "abc")
		if err := WriteABCCSV(w, rows); err != nil {
			h.logger.Error("csv export failed", "report", "abc", "error", err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if ws == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	rows, _ := h.service.Ledger(r.Context(), ws, parseFilters(r))
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) cycleCount(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if ws == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	rows, _ := h.service.CycleCount(r.Context(), ws, parseFilters(r))
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) cogs(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if ws == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	rows, _ := h.service.COGS(r.Context(), ws, parseFilters(r))
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) returns(w http.ResponseWriter, r *http.Request) {
	ws := shared.WorkspaceFromContext(r.Context())
	if ws == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	rows, _ := h.service.Returns(r.Context(), ws, parseFilters(r))
	httpx.JSON(w, http.StatusOK, rows)
}
