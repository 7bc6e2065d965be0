package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/seersec/seer/internal/jobs"
	"github.com/seersec/seer/internal/threats"
)

// ScoreStore is the persistence surface the scoring handler needs.
type ScoreStore interface {
	SetRiskScore(ctx context.Context, id int64, score int) error
}

// ThreatScoreHandler computes and stores risk scores for threat logs.
type ThreatScoreHandler struct {
	store   ScoreStore
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewThreatScoreHandler constructs the handler.
func NewThreatScoreHandler(store ScoreStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *ThreatScoreHandler {
	return &ThreatScoreHandler{store: store, logger: logger, metrics: metrics}
}

// Handle processes a TaskThreatScore task.
func (h *ThreatScoreHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track("threat_score")
	var payload ThreatScorePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	score := RiskScore(payload.SourceIP, payload.Description)
	if err := h.store.SetRiskScore(ctx, payload.LogID, score); err != nil {
		if errors.Is(err, threats.ErrNotFound) {
			return tracker.End(asynq.SkipRetry)
		}
		return tracker.End(err)
	}
	if h.logger != nil {
		h.logger.Info("threat log scored",
			slog.Int64("log_id", payload.LogID),
			slog.Int("risk_score", score),
		)
	}
	return tracker.End(nil)
}

// RiskScore derives a deterministic 0-100 risk score from the source address
// and description of a threat log.
func RiskScore(sourceIP, description string) int {
	octetSum := 0
	for _, part := range strings.Split(sourceIP, ".") {
		if v, err := strconv.Atoi(part); err == nil {
			octetSum += v
		}
	}
	ipFactor := float64(octetSum) / 255.0
	textFactor := float64(len(description)) / 100.0
	score := int((ipFactor*0.6 + textFactor*0.4) * 50)
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
