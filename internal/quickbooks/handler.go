package quickbooks

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// Handler wires HTTP endpoints for the QuickBooks integration.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	settingsURL string
}

// NewHandler constructs the handler. settingsURL is where the OAuth callback
// redirects the browser.
func NewHandler(logger *slog.Logger, service *Service, settingsURL string) *Handler {
	return &Handler{logger: logger, service: service, settingsURL: settingsURL}
}

// MountRoutes registers the workspace-scoped integration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quickbooks", func(r chi.Router) {
		r.Get("/auth-url", h.authURL)
		r.Delete("/connection", h.disconnect)
		r.Get("/items", h.listItems)
		r.Post("/invoices", h.createInvoice)
		r.Post("/imports", h.startImport)
		r.Get("/imports", h.listImports)
		r.Get("/imports/{id}", h.getImport)
		r.Post("/sync/products", h.syncProducts)
		r.Post("/sync/inventory", h.syncInventory)
		r.Get("/autosync", h.getAutoSync)
		r.Put("/autosync", h.saveAutoSync)
	})
}

// MountCallbackRoute registers the public OAuth callback.
func (h *Handler) MountCallbackRoute(r chi.Router) {
	r.Get("/quickbooks/callback", h.oauthCallback)
}

func workspace(w http.ResponseWriter, r *http.Request) (string, bool) {
	ws := shared.WorkspaceFromContext(r.Context())
	if ws == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return "", false
	}
	return ws, true
}

func (h *Handler) authURL(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"auth_url": h.service.AuthURL(ws)})
}

// oauthCallback handles the browser redirect from Intuit. The workspace id
// travels in the state parameter; success or failure is reported back to the
// settings page via query flags.
func (h *Handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ws := q.Get("state")
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Warn("oauth callback denied", "workspace_id", ws, "error", errParam)
		h.redirectToSettings(w, r, "denied")
		return
	}
	code := q.Get("code")
	realmID := q.Get("realmId")
	if ws == "" || code == "" || realmID == "" {
		h.redirectToSettings(w, r, "invalid")
		return
	}
	if err := h.service.CompleteOAuth(r.Context(), ws, code, realmID); err != nil {
		h.logger.Error("oauth exchange failed", "workspace_id", ws, "error", err)
		h.redirectToSettings(w, r, "failed")
		return
	}
	h.redirectToSettings(w, r, "connected")
}

func (h *Handler) redirectToSettings(w http.ResponseWriter, r *http.Request, outcome string) {
	target := h.settingsURL
	if u, err := url.Parse(target); err == nil {
		q := u.Query()
		q.Set("quickbooks", outcome)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	if err := h.service.Disconnect(r.Context(), ws); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	items, err := h.service.ListItems(r.Context(), ws)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

type invoiceForm struct {
	CustomerID string        `json:"customer_id"`
	Lines      []InvoiceLine `json:"lines"`
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	var form invoiceForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if form.CustomerID == "" || len(form.Lines) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "customer_id and lines are required")
		return
	}
	id, err := h.service.CreateInvoice(r.Context(), ws, form.CustomerID, form.Lines)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"invoice_id": id})
}

type importForm struct {
	SKUs []string `json:"skus"`
}

func (h *Handler) startImport(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	var form importForm
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &form); err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
	}

	// The watcher must outlive the request so the terminal cache bump
	// happens even when the client never polls.
	watchCtx, cancel := context.WithTimeout(context.Background(), time.Hour)
	job, watcher, err := h.service.StartImport(watchCtx, ws, form.SKUs)
	if err != nil {
		cancel()
		h.respondDomainError(w, err)
		return
	}
	go func() {
		defer cancel()
		for range watcher.Snapshots() {
		}
	}()

	httpx.JSON(w, http.StatusAccepted, job)
}

func (h *Handler) listImports(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := h.service.Jobs(r.Context(), ws, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, jobs)
}

func (h *Handler) getImport(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	job, err := h.service.Job(r.Context(), ws, chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) syncProducts(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	if err := h.service.SyncProduct(r.Context(), ws); err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) syncInventory(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	if err := h.service.SyncInventory(r.Context(), ws); err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) getAutoSync(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	cfg, err := h.service.AutoSync(r.Context(), ws)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

type autoSyncForm struct {
	ProductPush   SyncInterval `json:"product_push"`
	InventoryPull SyncInterval `json:"inventory_pull"`
}

func (h *Handler) saveAutoSync(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	var form autoSyncForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	cfg := AutoSyncConfig{WorkspaceID: ws, ProductPush: form.ProductPush, InventoryPull: form.InventoryPull}
	if err := h.service.SaveAutoSync(r.Context(), cfg); err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotConnected):
		httpx.Problem(w, http.StatusConflict, "Not Connected", "workspace is not connected to QuickBooks")
	case errors.Is(err, ErrJobNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrBadInterval):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unsupported sync interval")
	default:
		httpx.RespondError(w, err)
	}
}
