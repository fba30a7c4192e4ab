package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockpilot/stockpilot/internal/catalog"
	"github.com/stockpilot/stockpilot/internal/observability"
	"github.com/stockpilot/stockpilot/internal/procurement"
	"github.com/stockpilot/stockpilot/internal/quickbooks"
	"github.com/stockpilot/stockpilot/internal/reports"
	"github.com/stockpilot/stockpilot/internal/tasks"
	"github.com/stockpilot/stockpilot/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Keys               KeyVerifier
	CatalogHandler     *catalog.Handler
	ProcurementHandler *procurement.Handler
	TasksHandler       *tasks.Handler
	ReportsHandler     *reports.Handler
	QuickBooksHandler  *quickbooks.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// The OAuth callback is hit by a browser redirect from Intuit and
	// cannot carry an API key.
	if params.QuickBooksHandler != nil {
		params.QuickBooksHandler.MountCallbackRoute(r)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(params.Logger, params.Keys))

		params.CatalogHandler.MountRoutes(r)
		r.Route("/purchase-orders", params.ProcurementHandler.MountRoutes)
		params.TasksHandler.MountRoutes(r)
		params.ReportsHandler.MountRoutes(r)
		if params.QuickBooksHandler != nil {
			params.QuickBooksHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
