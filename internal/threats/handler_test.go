package threats

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/seersec/seer/internal/identity"
	"github.com/seersec/seer/internal/rbac"
)

type threatFixture struct {
	router  http.Handler
	repo    *stubRepo
	viewer  *rbac.Principal
	manager *rbac.Principal
}

func newThreatFixture(t *testing.T) *threatFixture {
	t.Helper()
	store := identity.NewMemoryStore()
	var viewerRole, managerRole identity.Role
	err := store.WithTx(context.Background(), func(ctx context.Context, tx identity.TxStore) error {
		var err error
		if viewerRole, err = tx.CreateRole(ctx, "ANALYST"); err != nil {
			return err
		}
		if managerRole, err = tx.CreateRole(ctx, "RESPONDER"); err != nil {
			return err
		}
		view, err := tx.CreatePermission(ctx, identity.PermViewThreats)
		if err != nil {
			return err
		}
		manage, err := tx.CreatePermission(ctx, identity.PermManageThreats)
		if err != nil {
			return err
		}
		if _, err := tx.GrantPermission(ctx, viewerRole.ID, view.ID); err != nil {
			return err
		}
		if _, err := tx.GrantPermission(ctx, managerRole.ID, view.ID); err != nil {
			return err
		}
		_, err = tx.GrantPermission(ctx, managerRole.ID, manage.ID)
		return err
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := rbac.NewEngine(store, nil, nil)
	repo := &stubRepo{}
	handler := NewHandler(logger, NewService(repo, nil, logger), rbac.Middleware{Engine: engine, Logger: logger})

	r := chi.NewRouter()
	r.Route("/threats", handler.MountRoutes)
	return &threatFixture{
		router:  r,
		repo:    repo,
		viewer:  &rbac.Principal{UserID: 1, Email: "a@example.com", RoleID: viewerRole.ID, RoleName: viewerRole.Name},
		manager: &rbac.Principal{UserID: 2, Email: "m@example.com", RoleID: managerRole.ID, RoleName: managerRole.Name},
	}
}

func (f *threatFixture) request(t *testing.T, method, path string, p *rbac.Principal, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestThreatRoutesPermissions(t *testing.T) {
	f := newThreatFixture(t)

	rec := f.request(t, http.MethodGet, "/threats/logs", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(t, http.MethodGet, "/threats/logs", f.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodPost, "/threats/logs", f.viewer, map[string]string{
		"type": "Port Scan", "severity": "Medium", "source_ip": "198.51.100.7",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestThreatIngestAndResolve(t *testing.T) {
	f := newThreatFixture(t)

	rec := f.request(t, http.MethodPost, "/threats/logs", f.manager, map[string]string{
		"type":        "Brute Force",
		"severity":    "High",
		"source_ip":   "203.0.113.42",
		"description": "repeated failures",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var stored ThreatLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.True(t, stored.IsAlert)
	require.False(t, stored.Resolved)

	rec = f.request(t, http.MethodPut, "/threats/logs/1/resolve", f.manager, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Threat resolved successfully")

	rec = f.request(t, http.MethodPut, "/threats/logs/999/resolve", f.manager, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThreatIngestValidation(t *testing.T) {
	f := newThreatFixture(t)

	rec := f.request(t, http.MethodPost, "/threats/logs", f.manager, map[string]string{
		"type": "X", "severity": "Catastrophic", "source_ip": "not-an-ip",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThreatListTimeRange(t *testing.T) {
	f := newThreatFixture(t)

	rec := f.request(t, http.MethodGet, "/threats/logs?severity=High&time_range=48", f.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "High", f.repo.lastFilters.Severity)
	require.Equal(t, 48, int(f.repo.lastFilters.Window.Hours()))

	rec = f.request(t, http.MethodGet, "/threats/logs?time_range=abc", f.viewer, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
