package threats

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence for threat logs.
type Repository interface {
	List(ctx context.Context, filters Filters) ([]ThreatLog, error)
	Insert(ctx context.Context, log ThreatLog) (ThreatLog, error)
	Resolve(ctx context.Context, id int64) error
	SetRiskScore(ctx context.Context, id int64, score int) error
	Stats(ctx context.Context) (Stats, error)
	CountRecentBySeverity(ctx context.Context, since time.Time, severity string) (int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const logColumns = `id, type, severity, source_ip, description, risk_score, is_alert, resolved, occurred_at`

// List returns threat logs newest first, honouring the optional filters.
func (r *PGRepository) List(ctx context.Context, filters Filters) ([]ThreatLog, error) {
	cutoff := time.Time{}
	if filters.Window > 0 {
		cutoff = time.Now().UTC().Add(-filters.Window)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+logColumns+`
		FROM threat_logs
		WHERE ($1 = '' OR severity = $1)
		  AND ($2 = '' OR type = $2)
		  AND ($3::timestamptz IS NULL OR occurred_at >= $3)
		ORDER BY occurred_at DESC, id DESC`,
		filters.Severity, filters.Type, nullableTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []ThreatLog
	for rows.Next() {
		var l ThreatLog
		if err := rows.Scan(&l.ID, &l.Type, &l.Severity, &l.SourceIP, &l.Description, &l.RiskScore, &l.IsAlert, &l.Resolved, &l.Timestamp); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Insert stores a new threat log.
func (r *PGRepository) Insert(ctx context.Context, log ThreatLog) (ThreatLog, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO threat_logs (type, severity, source_ip, description, is_alert, resolved, occurred_at)
		VALUES ($1, $2, $3, $4, TRUE, FALSE, NOW())
		RETURNING `+logColumns,
		log.Type, log.Severity, log.SourceIP, log.Description)
	var out ThreatLog
	err := row.Scan(&out.ID, &out.Type, &out.Severity, &out.SourceIP, &out.Description, &out.RiskScore, &out.IsAlert, &out.Resolved, &out.Timestamp)
	return out, err
}

// Resolve clears the alert flag and marks the log resolved.
func (r *PGRepository) Resolve(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE threat_logs SET is_alert = FALSE, resolved = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRiskScore stores the computed risk score for a log.
func (r *PGRepository) SetRiskScore(ctx context.Context, id int64, score int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE threat_logs SET risk_score = $2 WHERE id = $1`, id, score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates totals and the per-severity distribution.
func (r *PGRepository) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{SeverityDistribution: make(map[string]int)}
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_alert)
		FROM threat_logs`).Scan(&stats.TotalThreats, &stats.ActiveAlerts)
	if err != nil {
		return Stats{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT severity, COUNT(*) FROM threat_logs GROUP BY severity`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return Stats{}, err
		}
		stats.SeverityDistribution[severity] = count
	}
	return stats, rows.Err()
}

// CountRecentBySeverity counts logs of the given severity newer than since.
func (r *PGRepository) CountRecentBySeverity(ctx context.Context, since time.Time, severity string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM threat_logs WHERE severity = $1 AND occurred_at >= $2`, severity, since).Scan(&count)
	return count, err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
