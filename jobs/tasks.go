package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskThreatScore computes a risk score for a single threat log.
	TaskThreatScore = "threat:score"
	// TaskThreatScan sweeps recent threat logs for alarm conditions.
	TaskThreatScan = "threat:scan"
)

// ThreatScorePayload identifies the log to score and carries the inputs the
// scoring heuristic needs.
type ThreatScorePayload struct {
	LogID       int64  `json:"log_id"`
	SourceIP    string `json:"source_ip"`
	Description string `json:"description"`
}

// NewThreatScoreTask constructs an Asynq task for risk scoring.
func NewThreatScoreTask(payload ThreatScorePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskThreatScore, data), nil
}

// NewThreatScanTask constructs the periodic scan task. It carries no payload.
func NewThreatScanTask() *asynq.Task {
	return asynq.NewTask(TaskThreatScan, nil)
}
