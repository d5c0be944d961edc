package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/backoffice/internal/auth"
	"github.com/odyssey-erp/backoffice/internal/observability"
	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/queues"
	queueshttp "github.com/odyssey-erp/backoffice/internal/queues/http"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// ModuleGuard returns the middleware protecting one module's routes.
type ModuleGuard func(module string) func(http.Handler) http.Handler

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthHandler    *auth.Handler
	QueueHandler   *queueshttp.Handler
	Flows          []queues.Flow
	ModuleGuard    ModuleGuard
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with back-office defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, httpx.CodeValidation, http.StatusText(http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.OK(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		params.AuthHandler.MountRoutes(r)
	}

	writes := 0
	if params.Config != nil {
		writes = params.Config.WriteLimitPerMinute
	}
	flows := params.Flows
	if flows == nil {
		flows = queues.Flows()
	}
	for _, flow := range flows {
		var guard func(http.Handler) http.Handler
		if params.ModuleGuard != nil {
			guard = params.ModuleGuard(flow.Module)
		}
		params.QueueHandler.MountRoutes(r, flow, guard, writes)
	}

	return r
}
