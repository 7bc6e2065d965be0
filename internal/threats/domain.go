package threats

import (
	"errors"
	"time"
)

// Severity levels recorded on threat logs.
const (
	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityMedium   = "Medium"
	SeverityLow      = "Low"
)

// ErrNotFound indicates the requested threat log does not exist.
var ErrNotFound = errors.New("threats: log not found")

// ThreatLog is a recorded security threat event.
type ThreatLog struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	SourceIP    string    `json:"source_ip"`
	Description string    `json:"description"`
	RiskScore   *int      `json:"risk_score,omitempty"`
	IsAlert     bool      `json:"is_alert"`
	Resolved    bool      `json:"resolved"`
	Timestamp   time.Time `json:"timestamp"`
}

// Filters narrows a threat log listing.
type Filters struct {
	Severity string
	Type     string
	// Window limits results to logs newer than now minus the window.
	Window time.Duration
}

// Stats aggregates threat activity.
type Stats struct {
	TotalThreats         int            `json:"total_threats"`
	ActiveAlerts         int            `json:"active_alerts"`
	SeverityDistribution map[string]int `json:"severity_distribution"`
}
