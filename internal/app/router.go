package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/opticore-pos/opticore/internal/approvals"
	"github.com/opticore-pos/opticore/internal/audit"
	"github.com/opticore-pos/opticore/internal/auth"
	"github.com/opticore-pos/opticore/internal/catalog"
	"github.com/opticore-pos/opticore/internal/customers"
	"github.com/opticore-pos/opticore/internal/observability"
	"github.com/opticore-pos/opticore/internal/quotes"
	"github.com/opticore-pos/opticore/internal/quotes/pof"
	"github.com/opticore-pos/opticore/internal/quotes/secondpair"
	"github.com/opticore-pos/opticore/internal/reports"
	"github.com/opticore-pos/opticore/internal/shared"
	"github.com/opticore-pos/opticore/internal/users"
	"github.com/opticore-pos/opticore/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler       *auth.Handler
	CustomersHandler  *customers.Handler
	CatalogHandler    *catalog.Handler
	QuotesHandler     *quotes.Handler
	SecondPairHandler *secondpair.Handler
	POFHandler        *pof.Handler
	ReportsHandler    *reports.Handler
	ApprovalsHandler  *approvals.Handler
	UsersHandler      *users.Handler
	AuditHandler      *audit.Handler
	JobHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router.
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

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Issues the session's CSRF token for API clients to echo back on writes.
	r.Get("/csrf", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		token, err := params.CSRFManager.EnsureToken(r.Context(), sess)
		if err != nil {
			params.Logger.Error("issue csrf token", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"` + token + `"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/customers", params.CustomersHandler.MountRoutes)
	r.Route("/catalog", params.CatalogHandler.MountRoutes)
	r.Route("/quotes", func(r chi.Router) {
		params.QuotesHandler.MountRoutes(r)
		r.Route("/{id}/second-pair", params.SecondPairHandler.MountRoutes)
		r.Route("/{id}/patient-frame", params.POFHandler.MountRoutes)
	})
	r.Route("/approvals", params.ApprovalsHandler.MountRoutes)
	r.Route("/reports", params.ReportsHandler.MountRoutes)
	r.Route("/users", params.UsersHandler.MountRoutes)
	r.Route("/audit", params.AuditHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
