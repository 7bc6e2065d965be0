package rbac

import (
	"log/slog"
	"net/http"

	"github.com/seersec/seer/internal/platform/httpx"
)

// Middleware wires RBAC authorization checks for HTTP handlers. It expects
// an authenticated principal in the request context; a missing principal is
// an authentication failure, a deny an authorization failure.
type Middleware struct {
	Engine *Engine
	Logger *slog.Logger
}

// RequirePermission gates a route on a single permission name.
func (m Middleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return m.gate(func(r *http.Request, p *Principal) (Decision, error) {
		return m.Engine.RequirePermission(r.Context(), p, permission)
	})
}

// RequireRole gates a route on a role name, compared case-insensitively.
func (m Middleware) RequireRole(role string) func(http.Handler) http.Handler {
	return m.gate(func(r *http.Request, p *Principal) (Decision, error) {
		return m.Engine.RequireRole(r.Context(), p, role)
	})
}

func (m Middleware) gate(check func(*http.Request, *Principal) (Decision, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			decision, err := check(r, principal)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authorization check", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !decision.Allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.Reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
