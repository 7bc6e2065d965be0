package iam

import (
	"context"
	"log/slog"

	"github.com/seersec/seer/internal/identity"
	"github.com/seersec/seer/internal/rbac"
)

// Audit action classifications for privileged mutations.
const (
	ActionCreateRole       = "CREATE_ROLE"
	ActionDeleteRole       = "DELETE_ROLE"
	ActionAssignPermission = "ASSIGN_PERMISSION"
	ActionRevokePermission = "REVOKE_PERMISSION"
	ActionUpdateUserRole   = "UPDATE_USER_ROLE"
)

// Service implements the privileged RBAC admin operations. Every mutation
// and its audit entry run on one transaction; reads are not audited.
type Service struct {
	store  identity.Store
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(store identity.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateRole creates a role with a canonicalised name.
func (s *Service) CreateRole(ctx context.Context, actor *rbac.Principal, name string) (identity.Role, error) {
	var created identity.Role
	err := s.store.WithTx(ctx, func(ctx context.Context, tx identity.TxStore) error {
		role, err := tx.CreateRole(ctx, name)
		if err != nil {
			return err
		}
		created = role
		return tx.AppendAudit(ctx, identity.AuditEntry{
			AdminID:      actor.UserID,
			Action:       ActionCreateRole,
			TargetRoleID: &role.ID,
		})
	})
	if err != nil {
		return identity.Role{}, err
	}
	s.logMutation(actor, ActionCreateRole, slog.String("role", created.Name))
	return created, nil
}

// DeleteRole deletes a role unless it is ADMIN or still has users assigned.
func (s *Service) DeleteRole(ctx context.Context, actor *rbac.Principal, roleID int64) (identity.Role, error) {
	var deleted identity.Role
	err := s.store.WithTx(ctx, func(ctx context.Context, tx identity.TxStore) error {
		role, err := tx.DeleteRole(ctx, roleID)
		if err != nil {
			return err
		}
		deleted = role
		return tx.AppendAudit(ctx, identity.AuditEntry{
			AdminID:      actor.UserID,
			Action:       ActionDeleteRole,
			TargetRoleID: &role.ID,
		})
	})
	if err != nil {
		return identity.Role{}, err
	}
	s.logMutation(actor, ActionDeleteRole, slog.String("role", deleted.Name))
	return deleted, nil
}

// AssignPermission grants a permission to a role. Granting an already-granted
// permission succeeds without mutating anything and is not audited.
func (s *Service) AssignPermission(ctx context.Context, actor *rbac.Principal, roleName, permissionName string) (identity.Role, identity.Permission, bool, error) {
	var (
		role    identity.Role
		perm    identity.Permission
		granted bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx identity.TxStore) error {
		var err error
		role, err = tx.FindRoleByName(ctx, roleName)
		if err != nil {
			return err
		}
		perm, err = tx.FindPermissionByName(ctx, permissionName)
		if err != nil {
			return err
		}
		granted, err = tx.GrantPermission(ctx, role.ID, perm.ID)
		if err != nil {
			return err
		}
		if !granted {
			return nil
		}
		return tx.AppendAudit(ctx, identity.AuditEntry{
			AdminID:            actor.UserID,
			Action:             ActionAssignPermission,
			TargetRoleID:       &role.ID,
			TargetPermissionID: &perm.ID,
		})
	})
	if err != nil {
		return identity.Role{}, identity.Permission{}, false, err
	}
	if granted {
		s.logMutation(actor, ActionAssignPermission, slog.String("role", role.Name), slog.String("permission", perm.Name))
	}
	return role, perm, granted, nil
}

// RevokePermission removes a permission from a role; revoking a permission
// that was never granted is a client error.
func (s *Service) RevokePermission(ctx context.Context, actor *rbac.Principal, roleName, permissionName string) (identity.Role, identity.Permission, error) {
	var (
		role identity.Role
		perm identity.Permission
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx identity.TxStore) error {
		var err error
		role, err = tx.FindRoleByName(ctx, roleName)
		if err != nil {
			return err
		}
		perm, err = tx.FindPermissionByName(ctx, permissionName)
		if err != nil {
			return err
		}
		if err := tx.RevokePermission(ctx, role.ID, perm.ID); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, identity.AuditEntry{
			AdminID:            actor.UserID,
			Action:             ActionRevokePermission,
			TargetRoleID:       &role.ID,
			TargetPermissionID: &perm.ID,
		})
	})
	if err != nil {
		return identity.Role{}, identity.Permission{}, err
	}
	s.logMutation(actor, ActionRevokePermission, slog.String("role", role.Name), slog.String("permission", perm.Name))
	return role, perm, nil
}

// UpdateUserRole reassigns a user's role by role name.
func (s *Service) UpdateUserRole(ctx context.Context, actor *rbac.Principal, userID int64, roleName string) (identity.User, identity.Role, error) {
	var (
		user identity.User
		role identity.Role
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx identity.TxStore) error {
		var err error
		user, err = tx.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}
		role, err = tx.FindRoleByName(ctx, roleName)
		if err != nil {
			return err
		}
		if err := tx.ReassignUserRole(ctx, user.ID, role.ID); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, identity.AuditEntry{
			AdminID:      actor.UserID,
			Action:       ActionUpdateUserRole,
			TargetUserID: &user.ID,
			TargetRoleID: &role.ID,
		})
	})
	if err != nil {
		return identity.User{}, identity.Role{}, err
	}
	s.logMutation(actor, ActionUpdateUserRole, slog.String("user", user.Email), slog.String("role", role.Name))
	return user, role, nil
}

// ListUsers returns all users with their current role names.
func (s *Service) ListUsers(ctx context.Context) ([]identity.UserWithRole, error) {
	return s.store.ListUsers(ctx)
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]identity.Role, error) {
	return s.store.ListRoles(ctx)
}

// ListPermissions returns all permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]identity.Permission, error) {
	return s.store.ListPermissions(ctx)
}

// Stats summarises the identity model for the admin dashboard.
type Stats struct {
	TotalUsers       int `json:"total_users"`
	TotalAdmins      int `json:"total_admins"`
	TotalRoles       int `json:"total_roles"`
	TotalPermissions int `json:"total_permissions"`
}

// AdminStats computes dashboard counts.
func (s *Service) AdminStats(ctx context.Context) (Stats, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return Stats{}, err
	}
	perms, err := s.store.ListPermissions(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{TotalUsers: len(users), TotalRoles: len(roles), TotalPermissions: len(perms)}
	for _, u := range users {
		if u.RoleName == identity.RoleAdmin {
			stats.TotalAdmins++
		}
	}
	return stats, nil
}

func (s *Service) logMutation(actor *rbac.Principal, action string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	args := make([]any, 0, len(attrs)+2)
	args = append(args, slog.String("actor", actor.Email), slog.String("action", action))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	s.logger.Info("iam mutation", args...)
}
