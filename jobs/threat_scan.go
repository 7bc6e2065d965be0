package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/seersec/seer/internal/jobs"
	"github.com/seersec/seer/internal/threats"
)

// Scan alarm thresholds over the trailing window.
const (
	scanWindow        = 10 * time.Minute
	criticalThreshold = 5
	highThreshold     = 10
)

// ScanStore is the persistence surface the scan handler needs.
type ScanStore interface {
	CountRecentBySeverity(ctx context.Context, since time.Time, severity string) (int, error)
}

// ThreatScanHandler sweeps recent threat logs and raises alarms when the
// volume of Critical or High events crosses a threshold.
type ThreatScanHandler struct {
	store   ScanStore
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewThreatScanHandler constructs the handler.
func NewThreatScanHandler(store ScanStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *ThreatScanHandler {
	return &ThreatScanHandler{store: store, logger: logger, metrics: metrics, now: time.Now}
}

// Handle processes a TaskThreatScan task.
func (h *ThreatScanHandler) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := h.metrics.Track("threat_scan")
	since := h.now().UTC().Add(-scanWindow)

	critical, err := h.store.CountRecentBySeverity(ctx, since, threats.SeverityCritical)
	if err != nil {
		return tracker.End(err)
	}
	high, err := h.store.CountRecentBySeverity(ctx, since, threats.SeverityHigh)
	if err != nil {
		return tracker.End(err)
	}

	if critical >= criticalThreshold {
		h.alarm(threats.SeverityCritical, critical, criticalThreshold)
	}
	if high >= highThreshold {
		h.alarm(threats.SeverityHigh, high, highThreshold)
	}
	return tracker.End(nil)
}

func (h *ThreatScanHandler) alarm(severity string, count, threshold int) {
	if h.metrics != nil {
		h.metrics.AddAlarms(severity, 1)
	}
	if h.logger != nil {
		h.logger.Warn("threat volume alarm",
			slog.String("severity", severity),
			slog.Int("count", count),
			slog.Int("threshold", threshold),
			slog.Duration("window", scanWindow),
		)
	}
}
