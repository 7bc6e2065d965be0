package iam

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seersec/seer/internal/identity"
	"github.com/seersec/seer/internal/rbac"
)

func testActor() *rbac.Principal {
	return &rbac.Principal{UserID: 1, Username: "admin", Email: "admin@example.com", RoleName: identity.RoleAdmin}
}

func seedStore(t *testing.T) (*identity.MemoryStore, identity.Role, identity.Role, identity.Permission) {
	t.Helper()
	store := identity.NewMemoryStore()
	var admin, user identity.Role
	var perm identity.Permission
	err := store.WithTx(context.Background(), func(ctx context.Context, tx identity.TxStore) error {
		var err error
		if admin, err = tx.CreateRole(ctx, identity.RoleAdmin); err != nil {
			return err
		}
		if user, err = tx.CreateRole(ctx, identity.RoleUser); err != nil {
			return err
		}
		perm, err = tx.CreatePermission(ctx, identity.PermManageUsers)
		return err
	})
	require.NoError(t, err)
	return store, admin, user, perm
}

func TestCreateRoleCanonicalisesAndAudits(t *testing.T) {
	ctx := context.Background()
	store, _, _, _ := seedStore(t)
	svc := NewService(store, nil)

	role, err := svc.CreateRole(ctx, testActor(), "  support_staff ")
	require.NoError(t, err)
	require.Equal(t, "SUPPORT_STAFF", role.Name)

	audits := store.AuditEntries()
	require.Len(t, audits, 1)
	require.Equal(t, ActionCreateRole, audits[0].Action)
	require.Equal(t, role.ID, *audits[0].TargetRoleID)
}

func TestCreateRoleDuplicate(t *testing.T) {
	ctx := context.Background()
	store, _, _, _ := seedStore(t)
	svc := NewService(store, nil)

	_, err := svc.CreateRole(ctx, testActor(), "admin")
	require.ErrorIs(t, err, identity.ErrDuplicateRole)
	require.Empty(t, store.AuditEntries())
}

func TestDeleteRoleGuards(t *testing.T) {
	ctx := context.Background()
	store, admin, user, _ := seedStore(t)
	svc := NewService(store, nil)

	_, err := svc.DeleteRole(ctx, testActor(), admin.ID)
	require.ErrorIs(t, err, identity.ErrProtectedRole)

	_, err = store.CreateUser(ctx, "bob", "bob@example.com", "hash", user.ID)
	require.NoError(t, err)
	_, err = svc.DeleteRole(ctx, testActor(), user.ID)
	require.ErrorIs(t, err, identity.ErrRoleInUse)

	_, err = svc.DeleteRole(ctx, testActor(), 99)
	require.ErrorIs(t, err, identity.ErrUnknownRole)

	spare, err := svc.CreateRole(ctx, testActor(), "TEMP")
	require.NoError(t, err)
	deleted, err := svc.DeleteRole(ctx, testActor(), spare.ID)
	require.NoError(t, err)
	require.Equal(t, "TEMP", deleted.Name)
}

func TestAssignPermissionIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _, _, _ := seedStore(t)
	svc := NewService(store, nil)

	role, perm, granted, err := svc.AssignPermission(ctx, testActor(), "user", identity.PermManageUsers)
	require.NoError(t, err)
	require.True(t, granted)
	require.Equal(t, identity.RoleUser, role.Name)
	require.Equal(t, identity.PermManageUsers, perm.Name)

	// Re-granting succeeds without another audit entry.
	_, _, granted, err = svc.AssignPermission(ctx, testActor(), "user", identity.PermManageUsers)
	require.NoError(t, err)
	require.False(t, granted)

	audits := store.AuditEntries()
	require.Len(t, audits, 1)
	require.Equal(t, ActionAssignPermission, audits[0].Action)
}

func TestAssignPermissionUnknownTargets(t *testing.T) {
	ctx := context.Background()
	store, _, _, _ := seedStore(t)
	svc := NewService(store, nil)

	_, _, _, err := svc.AssignPermission(ctx, testActor(), "GHOST", identity.PermManageUsers)
	require.ErrorIs(t, err, identity.ErrUnknownRole)

	_, _, _, err = svc.AssignPermission(ctx, testActor(), identity.RoleUser, "NO_SUCH_PERM")
	require.ErrorIs(t, err, identity.ErrUnknownPermission)
}

func TestRevokePermission(t *testing.T) {
	ctx := context.Background()
	store, _, _, _ := seedStore(t)
	svc := NewService(store, nil)

	_, _, _, err := svc.AssignPermission(ctx, testActor(), identity.RoleUser, identity.PermManageUsers)
	require.NoError(t, err)

	_, _, err = svc.RevokePermission(ctx, testActor(), identity.RoleUser, identity.PermManageUsers)
	require.NoError(t, err)

	_, _, err = svc.RevokePermission(ctx, testActor(), identity.RoleUser, identity.PermManageUsers)
	require.ErrorIs(t, err, identity.ErrNotGranted)

	audits := store.AuditEntries()
	require.Len(t, audits, 2)
	require.Equal(t, ActionRevokePermission, audits[1].Action)
}

func TestUpdateUserRole(t *testing.T) {
	ctx := context.Background()
	store, admin, user, _ := seedStore(t)
	svc := NewService(store, nil)

	created, err := store.CreateUser(ctx, "bob", "bob@example.com", "hash", user.ID)
	require.NoError(t, err)

	updated, role, err := svc.UpdateUserRole(ctx, testActor(), created.ID, "admin")
	require.NoError(t, err)
	require.Equal(t, admin.ID, role.ID)
	require.Equal(t, created.ID, updated.ID)

	fresh, err := store.FindUserByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, admin.ID, fresh.RoleID)

	_, _, err = svc.UpdateUserRole(ctx, testActor(), 99, "admin")
	require.ErrorIs(t, err, identity.ErrUnknownUser)

	_, _, err = svc.UpdateUserRole(ctx, testActor(), created.ID, "GHOST")
	require.ErrorIs(t, err, identity.ErrUnknownRole)
}

func TestMutationRollsBackWhenAuditFails(t *testing.T) {
	ctx := context.Background()
	store, _, _, _ := seedStore(t)
	svc := NewService(store, nil)

	store.AuditErr = errors.New("audit insert failed")
	_, err := svc.CreateRole(ctx, testActor(), "AUDITOR")
	require.Error(t, err)

	store.AuditErr = nil
	// The role creation must not have survived the failed transaction.
	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	for _, r := range roles {
		require.NotEqual(t, "AUDITOR", r.Name)
	}
	require.Empty(t, store.AuditEntries())
}

func TestAdminStats(t *testing.T) {
	ctx := context.Background()
	store, admin, user, _ := seedStore(t)
	svc := NewService(store, nil)

	_, err := store.CreateUser(ctx, "root", "root@example.com", "hash", admin.ID)
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, "bob", "bob@example.com", "hash", user.ID)
	require.NoError(t, err)

	stats, err := svc.AdminStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalUsers)
	require.Equal(t, 1, stats.TotalAdmins)
	require.Equal(t, 2, stats.TotalRoles)
	require.Equal(t, 1, stats.TotalPermissions)
}
