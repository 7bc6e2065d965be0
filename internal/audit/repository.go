package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// ListWindow returns a window of audit entries newest first. Action and
// admin filters are optional.
func (r *PGRepository) ListWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.admin_id, u.email, a.action, a.target_user_id, a.target_role_id, a.target_permission_id, a.occurred_at
		FROM audit_logs a
		JOIN users u ON u.id = a.admin_id
		WHERE ($1 = '' OR a.action = $1)
		  AND ($2 = 0 OR a.admin_id = $2)
		ORDER BY a.occurred_at DESC, a.id DESC
		OFFSET $3 LIMIT $4`,
		filters.Action, filters.AdminID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AdminID, &e.AdminEmail, &e.Action, &e.TargetUserID, &e.TargetRoleID, &e.TargetPermissionID, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
