package threats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	logs        []ThreatLog
	lastFilters Filters
	nextID      int64
	insertErr   error
}

func (s *stubRepo) List(ctx context.Context, filters Filters) ([]ThreatLog, error) {
	s.lastFilters = filters
	return s.logs, nil
}

func (s *stubRepo) Insert(ctx context.Context, log ThreatLog) (ThreatLog, error) {
	if s.insertErr != nil {
		return ThreatLog{}, s.insertErr
	}
	s.nextID++
	log.ID = s.nextID
	log.IsAlert = true
	log.Timestamp = time.Now().UTC()
	s.logs = append(s.logs, log)
	return log, nil
}

func (s *stubRepo) Resolve(ctx context.Context, id int64) error {
	for i, l := range s.logs {
		if l.ID == id {
			s.logs[i].Resolved = true
			s.logs[i].IsAlert = false
			return nil
		}
	}
	return ErrNotFound
}

func (s *stubRepo) SetRiskScore(ctx context.Context, id int64, score int) error {
	for i, l := range s.logs {
		if l.ID == id {
			s.logs[i].RiskScore = &score
			return nil
		}
	}
	return ErrNotFound
}

func (s *stubRepo) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{SeverityDistribution: map[string]int{}}
	for _, l := range s.logs {
		stats.TotalThreats++
		if l.IsAlert {
			stats.ActiveAlerts++
		}
		stats.SeverityDistribution[l.Severity]++
	}
	return stats, nil
}

func (s *stubRepo) CountRecentBySeverity(ctx context.Context, since time.Time, severity string) (int, error) {
	count := 0
	for _, l := range s.logs {
		if l.Severity == severity && !l.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

type recordingEnqueuer struct {
	calls []int64
	err   error
}

func (r *recordingEnqueuer) EnqueueScore(ctx context.Context, logID int64, sourceIP, description string) error {
	r.calls = append(r.calls, logID)
	return r.err
}

func TestListDefaultsWindow(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil)

	_, err := svc.List(context.Background(), Filters{})
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, repo.lastFilters.Window)

	_, err = svc.List(context.Background(), Filters{Window: time.Hour, Severity: SeverityHigh})
	require.NoError(t, err)
	require.Equal(t, time.Hour, repo.lastFilters.Window)
	require.Equal(t, SeverityHigh, repo.lastFilters.Severity)
}

func TestIngestEnqueuesScoring(t *testing.T) {
	repo := &stubRepo{}
	enq := &recordingEnqueuer{}
	svc := NewService(repo, enq, nil)

	stored, err := svc.Ingest(context.Background(), ThreatLog{
		Type:        "Port Scan",
		Severity:    SeverityMedium,
		SourceIP:    "198.51.100.7",
		Description: "sequential probes",
	})
	require.NoError(t, err)
	require.True(t, stored.IsAlert)
	require.Equal(t, []int64{stored.ID}, enq.calls)
}

func TestIngestSurvivesEnqueueFailure(t *testing.T) {
	repo := &stubRepo{}
	enq := &recordingEnqueuer{err: errors.New("queue down")}
	svc := NewService(repo, enq, nil)

	stored, err := svc.Ingest(context.Background(), ThreatLog{Type: "Phishing", Severity: SeverityLow, SourceIP: "203.0.113.9"})
	require.NoError(t, err)
	require.NotZero(t, stored.ID)
}

func TestResolve(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil)

	stored, err := svc.Ingest(context.Background(), ThreatLog{Type: "Brute Force", Severity: SeverityHigh, SourceIP: "203.0.113.9"})
	require.NoError(t, err)

	require.NoError(t, svc.Resolve(context.Background(), stored.ID))
	require.ErrorIs(t, svc.Resolve(context.Background(), 999), ErrNotFound)
}

func TestStats(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil)

	for _, severity := range []string{SeverityCritical, SeverityCritical, SeverityLow} {
		_, err := svc.Ingest(context.Background(), ThreatLog{Type: "X", Severity: severity, SourceIP: "203.0.113.9"})
		require.NoError(t, err)
	}
	require.NoError(t, svc.Resolve(context.Background(), 1))

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalThreats)
	require.Equal(t, 2, stats.ActiveAlerts)
	require.Equal(t, 2, stats.SeverityDistribution[SeverityCritical])
}
