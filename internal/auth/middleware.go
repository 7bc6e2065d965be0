package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/seersec/seer/internal/platform/httpx"
	"github.com/seersec/seer/internal/rbac"
)

// Middleware resolves bearer tokens into principals.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAuth rejects requests without a valid bearer token and stores the
// resolved principal in the request context. All resolution failures surface
// as the same 401 response body.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Invalid authentication credentials")
			return
		}
		principal, err := m.Service.ResolvePrincipal(r.Context(), raw)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Info("token rejected", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Invalid authentication credentials")
			return
		}
		ctx := rbac.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !found || token == "" {
		return "", false
	}
	return token, true
}
