package model

import (
	"strings"
	"time"
)

// AnomalyType names the dominant reason behind an anomaly.
type AnomalyType string

const (
	AnomalySuddenMotion AnomalyType = "sudden_motion"
	AnomalyLoitering    AnomalyType = "loitering"
	AnomalySize         AnomalyType = "size_anomaly"
	AnomalyTimeContext  AnomalyType = "time_context"
	AnomalyUnknown      AnomalyType = "unknown"
)

// Severity is a discretized anomaly strength. SeverityNone is below the
// lowest bin edge.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"NONE", "LOW", "MEDIUM", "HIGH", "CRITICAL"}

func (s Severity) String() string {
	if s < SeverityNone || s > SeverityCritical {
		return "NONE"
	}
	return severityNames[s]
}

// MarshalText renders the severity name in JSON payloads.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name; unknown names map to SeverityNone.
func (s *Severity) UnmarshalText(b []byte) error {
	*s = SeverityNone
	name := strings.ToUpper(string(b))
	for i, n := range severityNames {
		if n == name {
			*s = Severity(i)
		}
	}
	return nil
}

// AnomalyEvent is a sustained, scored deviation from the learned baseline.
type AnomalyEvent struct {
	ID         string      `json:"id"`
	CameraID   string      `json:"camera_id,omitempty"`
	Seq        uint64      `json:"seq"`
	Timestamp  time.Time   `json:"timestamp"`
	Type       AnomalyType `json:"type"`
	Severity   Severity    `json:"severity"`
	Confidence float64     `json:"confidence"`
	Score      float64     `json:"score"`
	Deviation  float64     `json:"deviation"`
	Reasons    []string    `json:"reasons"`
	TrackIDs   []int       `json:"track_ids,omitempty"`
}
