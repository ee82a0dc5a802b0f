package model

import "time"

// StateName is one of the three pipeline states.
type StateName string

const (
	StateIdle   StateName = "IDLE"
	StateMotion StateName = "MOTION"
	StateAlert  StateName = "ALERT"
)

// Ordinal maps the state to 0, 1, 2 for gauges.
func (s StateName) Ordinal() int {
	switch s {
	case StateMotion:
		return 1
	case StateAlert:
		return 2
	default:
		return 0
	}
}

// PipelineState is the externally observable verdict of a session.
// CooldownUntil is zero unless the state is ALERT.
type PipelineState struct {
	State          StateName `json:"state"`
	LastTransition time.Time `json:"last_transition"`
	CooldownUntil  time.Time `json:"cooldown_until,omitempty"`
}

// TrackView is a read-only copy of a stabilized track.
type TrackView struct {
	ID         int     `json:"id"`
	Box        Box     `json:"box"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Locked     bool    `json:"locked"`
	Age        int     `json:"age"`
	Missed     int     `json:"missed"`
}

// Verdict is what the session hands to renderers for each frame.
type Verdict struct {
	Seq        uint64        `json:"seq"`
	Timestamp  time.Time     `json:"timestamp"`
	State      PipelineState `json:"state"`
	Tracks     []TrackView   `json:"tracks"`
	Anomaly    *AnomalyEvent `json:"anomaly,omitempty"`
	AlertCause string        `json:"alert_cause,omitempty"`
	Score      float64       `json:"score"`
	Degraded   bool          `json:"degraded"`
	Missed     bool          `json:"missed"`
}

// Status is the polled snapshot of a session.
type Status struct {
	SessionID         string    `json:"session_id"`
	CameraID          string    `json:"camera_id"`
	State             StateName `json:"state"`
	LearningComplete  bool      `json:"learning_complete"`
	FramesAnalyzed    uint64    `json:"frames_analyzed"`
	AnomaliesDetected uint64    `json:"anomalies_detected"`
	ActiveTrackCount  int       `json:"active_track_count"`
	LockedTracks      int       `json:"locked_tracks"`
	DegradedFrames    uint64    `json:"degraded_frames"`
	MissedFrames      uint64    `json:"missed_frames"`
	TotalLocks        uint64    `json:"total_locks"`
	TotalUnlocks      uint64    `json:"total_unlocks"`
}
