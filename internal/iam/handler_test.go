package iam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
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

type adminFixture struct {
	router http.Handler
	store  *identity.MemoryStore
	admin  identity.Role
	user   identity.Role
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	store := identity.NewMemoryStore()
	var admin, user identity.Role
	err := store.WithTx(context.Background(), func(ctx context.Context, tx identity.TxStore) error {
		var err error
		if admin, err = tx.CreateRole(ctx, identity.RoleAdmin); err != nil {
			return err
		}
		if user, err = tx.CreateRole(ctx, identity.RoleUser); err != nil {
			return err
		}
		for _, name := range []string{
			identity.PermManageUsers,
			identity.PermManageRoles,
			identity.PermManagePermissions,
			identity.PermViewAdminStats,
		} {
			perm, err := tx.CreatePermission(ctx, name)
			if err != nil {
				return err
			}
			if _, err := tx.GrantPermission(ctx, admin.ID, perm.ID); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := rbac.NewEngine(store, nil, nil)
	rbacMW := rbac.Middleware{Engine: engine, Logger: logger}
	handler := NewHandler(logger, NewService(store, logger), rbacMW)

	r := chi.NewRouter()
	r.Route("/admin", handler.MountAdminRoutes)
	r.Route("/iam", handler.MountIAMRoutes)
	return &adminFixture{router: r, store: store, admin: admin, user: user}
}

func (f *adminFixture) request(t *testing.T, method, path string, principal *rbac.Principal, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *adminFixture) adminPrincipal() *rbac.Principal {
	return &rbac.Principal{UserID: 1, Username: "root", Email: "root@example.com", RoleID: f.admin.ID, RoleName: f.admin.Name}
}

func (f *adminFixture) userPrincipal() *rbac.Principal {
	return &rbac.Principal{UserID: 2, Username: "bob", Email: "bob@example.com", RoleID: f.user.ID, RoleName: f.user.Name}
}

func TestAdminRoutesRequirePrincipal(t *testing.T) {
	f := newAdminFixture(t)
	rec := f.request(t, http.MethodGet, "/admin/roles", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesForbidNonAdmins(t *testing.T) {
	f := newAdminFixture(t)
	rec := f.request(t, http.MethodGet, "/admin/roles", f.userPrincipal(), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.request(t, http.MethodGet, "/iam/users", f.userPrincipal(), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.request(t, http.MethodGet, "/admin/stats", f.userPrincipal(), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateAndDeleteRole(t *testing.T) {
	f := newAdminFixture(t)
	p := f.adminPrincipal()

	rec := f.request(t, http.MethodPost, "/admin/roles", p, map[string]string{"name": "auditor"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), "Role 'AUDITOR' created successfully")

	rec = f.request(t, http.MethodPost, "/admin/roles", p, map[string]string{"name": "AUDITOR"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Role already exists")

	rec = f.request(t, http.MethodDelete, fmt.Sprintf("/admin/roles/%d", f.admin.ID), p, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Cannot delete the ADMIN role")

	rec = f.request(t, http.MethodDelete, "/admin/roles/999", p, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "Role not found")
}

func TestDeleteRoleWithAssignedUsers(t *testing.T) {
	f := newAdminFixture(t)
	p := f.adminPrincipal()

	_, err := f.store.CreateUser(context.Background(), "bob", "bob@example.com", "hash", f.user.ID)
	require.NoError(t, err)

	rec := f.request(t, http.MethodDelete, fmt.Sprintf("/admin/roles/%d", f.user.ID), p, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Cannot delete role with assigned users")
}

func TestPermissionAssignRevokeFlow(t *testing.T) {
	f := newAdminFixture(t)
	p := f.adminPrincipal()

	body := map[string]string{"role_name": "USER", "permission_name": identity.PermManageUsers}

	rec := f.request(t, http.MethodPost, "/admin/permissions", p, body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Permission 'MANAGE_USERS' assigned to role 'USER'")

	rec = f.request(t, http.MethodPost, "/admin/permissions", p, body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Permission 'MANAGE_USERS' is already assigned to role 'USER'")

	rec = f.request(t, http.MethodDelete, "/admin/permissions", p, body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Permission 'MANAGE_USERS' removed from role 'USER'")

	rec = f.request(t, http.MethodDelete, "/admin/permissions", p, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Permission 'MANAGE_USERS' is not assigned to role 'USER'")

	body["role_name"] = "GHOST"
	rec = f.request(t, http.MethodPost, "/admin/permissions", p, body)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateUserRoleEndpoints(t *testing.T) {
	f := newAdminFixture(t)
	p := f.adminPrincipal()

	created, err := f.store.CreateUser(context.Background(), "bob", "bob@example.com", "hash", f.user.ID)
	require.NoError(t, err)

	rec := f.request(t, http.MethodPut, fmt.Sprintf("/admin/users/%d/role", created.ID), p,
		map[string]string{"new_role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "User bob@example.com role updated to ADMIN")

	rec = f.request(t, http.MethodPut, "/iam/users/role", p,
		map[string]any{"user_id": created.ID, "new_role": "GHOST"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid role 'GHOST'")

	rec = f.request(t, http.MethodPut, "/iam/users/role", p,
		map[string]any{"user_id": 999, "new_role": "USER"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "User not found")
}

func TestAdminStatsEndpoint(t *testing.T) {
	f := newAdminFixture(t)
	p := f.adminPrincipal()

	_, err := f.store.CreateUser(context.Background(), "root", "root@example.com", "hash", f.admin.ID)
	require.NoError(t, err)

	rec := f.request(t, http.MethodGet, "/admin/stats", p, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.TotalUsers)
	require.Equal(t, 1, stats.TotalAdmins)
	require.Equal(t, 2, stats.TotalRoles)
	require.Equal(t, 4, stats.TotalPermissions)
}
