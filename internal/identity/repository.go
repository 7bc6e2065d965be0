package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seersec/seer/internal/platform/db"
)

// DBTX is satisfied by both pgxpool.Pool and pgx.Tx so the same queries run
// inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
	q    queries
}

// NewStore constructs a PostgreSQL-backed store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, q: queries{db: pool}}
}

var _ Store = (*PGStore)(nil)

func (s *PGStore) CreateUser(ctx context.Context, username, email, passwordHash string, roleID int64) (User, error) {
	return s.q.createUser(ctx, username, email, passwordHash, roleID)
}

func (s *PGStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return s.q.findUserByEmail(ctx, email)
}

func (s *PGStore) FindUserByID(ctx context.Context, id int64) (User, error) {
	return s.q.findUserByID(ctx, id)
}

func (s *PGStore) ListUsers(ctx context.Context) ([]UserWithRole, error) {
	return s.q.listUsers(ctx)
}

func (s *PGStore) FindRoleByID(ctx context.Context, id int64) (Role, error) {
	return s.q.findRoleByID(ctx, id)
}

func (s *PGStore) FindRoleByName(ctx context.Context, name string) (Role, error) {
	return s.q.findRoleByName(ctx, name)
}

func (s *PGStore) ListRoles(ctx context.Context) ([]Role, error) {
	return s.q.listRoles(ctx)
}

func (s *PGStore) FindPermissionByName(ctx context.Context, name string) (Permission, error) {
	return s.q.findPermissionByName(ctx, name)
}

func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.q.listPermissions(ctx)
}

func (s *PGStore) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return s.q.rolePermissions(ctx, roleID)
}

// WithTx runs fn against a transactional TxStore view.
func (s *PGStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxStore{q: queries{db: tx}})
	})
}

type pgTxStore struct {
	q queries
}

var _ TxStore = (*pgTxStore)(nil)

func (t *pgTxStore) FindUserByID(ctx context.Context, id int64) (User, error) {
	return t.q.findUserByID(ctx, id)
}

func (t *pgTxStore) FindRoleByID(ctx context.Context, id int64) (Role, error) {
	return t.q.findRoleByID(ctx, id)
}

func (t *pgTxStore) FindRoleByName(ctx context.Context, name string) (Role, error) {
	return t.q.findRoleByName(ctx, name)
}

func (t *pgTxStore) FindPermissionByName(ctx context.Context, name string) (Permission, error) {
	return t.q.findPermissionByName(ctx, name)
}

func (t *pgTxStore) CreateRole(ctx context.Context, name string) (Role, error) {
	return t.q.createRole(ctx, name)
}

func (t *pgTxStore) DeleteRole(ctx context.Context, id int64) (Role, error) {
	return t.q.deleteRole(ctx, id)
}

func (t *pgTxStore) CreatePermission(ctx context.Context, name string) (Permission, error) {
	return t.q.createPermission(ctx, name)
}

func (t *pgTxStore) GrantPermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	return t.q.grantPermission(ctx, roleID, permissionID)
}

func (t *pgTxStore) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	return t.q.revokePermission(ctx, roleID, permissionID)
}

func (t *pgTxStore) ReassignUserRole(ctx context.Context, userID, roleID int64) error {
	return t.q.reassignUserRole(ctx, userID, roleID)
}

func (t *pgTxStore) AppendAudit(ctx context.Context, entry AuditEntry) error {
	return t.q.appendAudit(ctx, entry)
}

type queries struct {
	db DBTX
}

const userColumns = `id, username, email, password_hash, is_active, role_id, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.RoleID, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (q queries) createUser(ctx context.Context, username, email, passwordHash string, roleID int64) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, is_active, role_id)
		VALUES ($1, $2, $3, TRUE, $4)
		RETURNING `+userColumns,
		username, email, passwordHash, roleID)
	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == "23505":
				return User{}, ErrDuplicateIdentity
			case pgErr.Code == "23503":
				return User{}, ErrUnknownRole
			}
		}
		return User{}, err
	}
	return u, nil
}

func (q queries) findUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUnknownUser
	}
	return u, err
}

func (q queries) findUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUnknownUser
	}
	return u, err
}

func (q queries) listUsers(ctx context.Context) ([]UserWithRole, error) {
	rows, err := q.db.Query(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.is_active, u.role_id, u.created_at, u.updated_at, r.name
		FROM users u
		JOIN roles r ON r.id = u.role_id
		ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []UserWithRole
	for rows.Next() {
		var u UserWithRole
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.RoleID, &u.CreatedAt, &u.UpdatedAt, &u.RoleName); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q queries) findRoleByID(ctx context.Context, id int64) (Role, error) {
	var r Role
	err := q.db.QueryRow(ctx, `SELECT id, name, created_at FROM roles WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrUnknownRole
	}
	return r, err
}

func (q queries) findRoleByName(ctx context.Context, name string) (Role, error) {
	var r Role
	err := q.db.QueryRow(ctx, `SELECT id, name, created_at FROM roles WHERE name = $1`, CanonicalName(name)).
		Scan(&r.ID, &r.Name, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrUnknownRole
	}
	return r, err
}

func (q queries) listRoles(ctx context.Context) ([]Role, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (q queries) createRole(ctx context.Context, name string) (Role, error) {
	var r Role
	err := q.db.QueryRow(ctx, `INSERT INTO roles (name) VALUES ($1) RETURNING id, name, created_at`, CanonicalName(name)).
		Scan(&r.ID, &r.Name, &r.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, ErrDuplicateRole
		}
		return Role{}, err
	}
	return r, nil
}

func (q queries) deleteRole(ctx context.Context, id int64) (Role, error) {
	role, err := q.findRoleByID(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if role.Name == RoleAdmin {
		return Role{}, ErrProtectedRole
	}
	var inUse bool
	if err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE role_id = $1)`, id).Scan(&inUse); err != nil {
		return Role{}, err
	}
	if inUse {
		return Role{}, ErrRoleInUse
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return Role{}, err
	}
	tag, err := q.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return Role{}, err
	}
	if tag.RowsAffected() == 0 {
		return Role{}, ErrUnknownRole
	}
	return role, nil
}

func (q queries) findPermissionByName(ctx context.Context, name string) (Permission, error) {
	var p Permission
	err := q.db.QueryRow(ctx, `SELECT id, name FROM permissions WHERE name = $1`, name).
		Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrUnknownPermission
	}
	return p, err
}

func (q queries) listPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (q queries) rolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := q.db.Query(ctx, `
		SELECT p.id, p.name
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (q queries) createPermission(ctx context.Context, name string) (Permission, error) {
	var p Permission
	err := q.db.QueryRow(ctx, `INSERT INTO permissions (name) VALUES ($1) RETURNING id, name`, name).
		Scan(&p.ID, &p.Name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Permission{}, ErrDuplicatePermission
		}
		return Permission{}, err
	}
	return p, nil
}

func (q queries) grantPermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, roleID, permissionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (q queries) revokePermission(ctx context.Context, roleID, permissionID int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotGranted
	}
	return nil
}

func (q queries) reassignUserRole(ctx context.Context, userID, roleID int64) error {
	tag, err := q.db.Exec(ctx, `UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1`, userID, roleID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrUnknownRole
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownUser
	}
	return nil
}

const auditColumns = `admin_id, action, target_user_id, target_role_id, target_permission_id, occurred_at`

func (q queries) appendAudit(ctx context.Context, entry AuditEntry) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO audit_logs (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		entry.AdminID, entry.Action, entry.TargetUserID, entry.TargetRoleID, entry.TargetPermissionID)
	return err
}
