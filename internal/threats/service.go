package threats

import (
	"context"
	"log/slog"
	"time"
)

// ScoreEnqueuer schedules background risk scoring for an ingested log.
type ScoreEnqueuer interface {
	EnqueueScore(ctx context.Context, logID int64, sourceIP, description string) error
}

// Service handles threat log business logic.
type Service struct {
	repo     Repository
	enqueuer ScoreEnqueuer
	logger   *slog.Logger
}

// NewService builds a Service instance. enqueuer may be nil when background
// scoring is disabled.
func NewService(repo Repository, enqueuer ScoreEnqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, enqueuer: enqueuer, logger: logger}
}

// List returns threat logs with optional severity/type/time-range filters.
// A zero window defaults to the last 24 hours.
func (s *Service) List(ctx context.Context, filters Filters) ([]ThreatLog, error) {
	if filters.Window == 0 {
		filters.Window = 24 * time.Hour
	}
	if filters.Window < 0 {
		filters.Window = 0
	}
	return s.repo.List(ctx, filters)
}

// Ingest records a new threat log and schedules risk scoring.
func (s *Service) Ingest(ctx context.Context, log ThreatLog) (ThreatLog, error) {
	stored, err := s.repo.Insert(ctx, log)
	if err != nil {
		return ThreatLog{}, err
	}
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueScore(ctx, stored.ID, stored.SourceIP, stored.Description); err != nil && s.logger != nil {
			s.logger.Warn("enqueue threat score", slog.Int64("log_id", stored.ID), slog.Any("error", err))
		}
	}
	return stored, nil
}

// Resolve marks a threat log as resolved.
func (s *Service) Resolve(ctx context.Context, id int64) error {
	return s.repo.Resolve(ctx, id)
}

// Stats returns aggregated threat statistics.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}
