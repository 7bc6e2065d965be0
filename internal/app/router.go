package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/seersec/seer/internal/audit"
	"github.com/seersec/seer/internal/auth"
	"github.com/seersec/seer/internal/iam"
	"github.com/seersec/seer/internal/identity"
	"github.com/seersec/seer/internal/observability"
	"github.com/seersec/seer/internal/rbac"
	"github.com/seersec/seer/internal/threats"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthHandler    *auth.Handler
	AuthMiddleware auth.Middleware
	IAMHandler     *iam.Handler
	AuditHandler   *audit.Handler
	ThreatsHandler *threats.Handler
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Seer defaults.
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

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireAuth)

		r.Route("/iam", params.IAMHandler.MountIAMRoutes)
		r.Route("/admin", func(r chi.Router) {
			params.IAMHandler.MountAdminRoutes(r)
			if params.AuditHandler != nil {
				r.With(params.RBACMiddleware.RequirePermission(identity.PermViewAuditLogs)).
					Get("/audit", params.AuditHandler.Timeline)
			}
		})
		if params.ThreatsHandler != nil {
			r.Route("/threats", params.ThreatsHandler.MountRoutes)
		}
	})

	return r
}
