package identity

import "context"

// Store defines persistence for users, roles and permissions. Read methods
// always observe committed state; mutations that must pair with an audit
// entry go through WithTx.
type Store interface {
	CreateUser(ctx context.Context, username, email, passwordHash string, roleID int64) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByID(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context) ([]UserWithRole, error)

	FindRoleByID(ctx context.Context, id int64) (Role, error)
	FindRoleByName(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)

	FindPermissionByName(ctx context.Context, name string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	RolePermissions(ctx context.Context, roleID int64) ([]Permission, error)

	// WithTx runs fn against a transactional view of the store. The
	// transaction commits only when fn returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error
}

// TxStore exposes the mutations available inside a transaction, together
// with the reads needed to validate their preconditions and the audit append
// that must commit atomically with them.
type TxStore interface {
	FindUserByID(ctx context.Context, id int64) (User, error)
	FindRoleByID(ctx context.Context, id int64) (Role, error)
	FindRoleByName(ctx context.Context, name string) (Role, error)
	FindPermissionByName(ctx context.Context, name string) (Permission, error)

	CreateRole(ctx context.Context, name string) (Role, error)
	// DeleteRole returns the deleted role. It fails with ErrProtectedRole for
	// ADMIN and ErrRoleInUse when any user still references the role.
	DeleteRole(ctx context.Context, id int64) (Role, error)
	CreatePermission(ctx context.Context, name string) (Permission, error)
	// GrantPermission reports whether a new grant was created; granting an
	// already-granted permission is a success no-op.
	GrantPermission(ctx context.Context, roleID, permissionID int64) (bool, error)
	RevokePermission(ctx context.Context, roleID, permissionID int64) error
	ReassignUserRole(ctx context.Context, userID, roleID int64) error

	AppendAudit(ctx context.Context, entry AuditEntry) error
}
