package iam

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/seersec/seer/internal/identity"
	"github.com/seersec/seer/internal/platform/httpx"
	"github.com/seersec/seer/internal/rbac"
)

// Handler exposes the admin operations under both /iam and /admin prefixes.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, validator: validator.New()}
}

// MountIAMRoutes registers the /iam route group.
func (h *Handler) MountIAMRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(identity.PermManageUsers))
		r.Get("/users", h.listUsers)
		r.Put("/users/role", h.updateUserRoleBody)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(identity.PermManageRoles))
		r.Get("/roles", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(identity.PermManagePermissions))
		r.Get("/permissions", h.listPermissions)
		r.Post("/permissions/assign", h.assignPermission)
		r.Delete("/permissions/remove", h.revokePermission)
	})
}

// MountAdminRoutes registers the /admin route group.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.With(h.rbac.RequirePermission(identity.PermViewAdminStats)).Get("/stats", h.adminStats)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(identity.PermManageUsers))
		r.Get("/users", h.listUsers)
		r.Put("/users/{id}/role", h.updateUserRolePath)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(identity.PermManageRoles))
		r.Get("/roles", h.listRoles)
		r.Post("/roles", h.createRole)
		r.Delete("/roles/{id}", h.deleteRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(identity.PermManagePermissions))
		r.Post("/permissions", h.assignPermission)
		r.Delete("/permissions", h.revokePermission)
	})
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
	Role     string `json:"role"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	out := make([]userResponse, len(users))
	for i, u := range users {
		out[i] = userResponse{ID: u.ID, Username: u.Username, Email: u.Email, IsActive: u.IsActive, Role: u.RoleName}
	}
	httpx.JSON(w, http.StatusOK, out)
}

type roleResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	out := make([]roleResponse, len(roles))
	for i, role := range roles {
		out[i] = roleResponse{ID: role.ID, Name: role.Name}
	}
	httpx.JSON(w, http.StatusOK, out)
}

type permissionResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	out := make([]permissionResponse, len(perms))
	for i, p := range perms {
		out[i] = permissionResponse{ID: p.ID, Name: p.Name}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.AdminStats(r.Context())
	if err != nil {
		h.fail(w, "admin stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

type createRoleRequest struct {
	Name string `json:"name" validate:"required,min=2"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), h.actor(r), req.Name)
	if err != nil {
		if errors.Is(err, identity.ErrDuplicateRole) {
			httpx.Problem(w, http.StatusBadRequest, "Duplicate", "Role already exists")
			return
		}
		h.fail(w, "create role", err)
		return
	}
	httpx.Message(w, http.StatusCreated, fmt.Sprintf("Role '%s' created successfully", role.Name))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role id")
		return
	}
	role, err := h.service.DeleteRole(r.Context(), h.actor(r), roleID)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUnknownRole):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "Role not found")
		case errors.Is(err, identity.ErrProtectedRole):
			httpx.Problem(w, http.StatusBadRequest, "Protected Role", "Cannot delete the ADMIN role")
		case errors.Is(err, identity.ErrRoleInUse):
			httpx.Problem(w, http.StatusBadRequest, "Role In Use", "Cannot delete role with assigned users")
		default:
			h.fail(w, "delete role", err)
		}
		return
	}
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Role '%s' deleted successfully", role.Name))
}

type permissionAssignRequest struct {
	RoleName       string `json:"role_name" validate:"required"`
	PermissionName string `json:"permission_name" validate:"required"`
}

func (h *Handler) assignPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionAssignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, perm, granted, err := h.service.AssignPermission(r.Context(), h.actor(r), req.RoleName, req.PermissionName)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUnknownRole):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "Role not found")
		case errors.Is(err, identity.ErrUnknownPermission):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "Permission not found")
		default:
			h.fail(w, "assign permission", err)
		}
		return
	}
	if !granted {
		httpx.Message(w, http.StatusOK, fmt.Sprintf("Permission '%s' is already assigned to role '%s'", perm.Name, role.Name))
		return
	}
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Permission '%s' assigned to role '%s'", perm.Name, role.Name))
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionAssignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, perm, err := h.service.RevokePermission(r.Context(), h.actor(r), req.RoleName, req.PermissionName)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUnknownRole):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "Role not found")
		case errors.Is(err, identity.ErrUnknownPermission):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "Permission not found")
		case errors.Is(err, identity.ErrNotGranted):
			httpx.Problem(w, http.StatusBadRequest, "Not Assigned",
				fmt.Sprintf("Permission '%s' is not assigned to role '%s'", req.PermissionName, identity.CanonicalName(req.RoleName)))
		default:
			h.fail(w, "revoke permission", err)
		}
		return
	}
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Permission '%s' removed from role '%s'", perm.Name, role.Name))
}

type userRoleUpdateRequest struct {
	UserID  int64  `json:"user_id" validate:"required"`
	NewRole string `json:"new_role" validate:"required"`
}

func (h *Handler) updateUserRoleBody(w http.ResponseWriter, r *http.Request) {
	var req userRoleUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	h.updateUserRole(w, r, req.UserID, req.NewRole)
}

type pathRoleUpdateRequest struct {
	NewRole string `json:"new_role" validate:"required"`
}

func (h *Handler) updateUserRolePath(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req pathRoleUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	h.updateUserRole(w, r, userID, req.NewRole)
}

func (h *Handler) updateUserRole(w http.ResponseWriter, r *http.Request, userID int64, roleName string) {
	user, role, err := h.service.UpdateUserRole(r.Context(), h.actor(r), userID, roleName)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUnknownUser):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "User not found")
		case errors.Is(err, identity.ErrUnknownRole):
			httpx.Problem(w, http.StatusBadRequest, "Invalid Role",
				fmt.Sprintf("Invalid role '%s'", roleName))
		default:
			h.fail(w, "update user role", err)
		}
		return
	}
	httpx.Message(w, http.StatusOK, fmt.Sprintf("User %s role updated to %s", user.Email, role.Name))
}

func (h *Handler) actor(r *http.Request) *rbac.Principal {
	return rbac.PrincipalFromContext(r.Context())
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
