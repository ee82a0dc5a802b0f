// Package config defines session configuration structures and loading hooks.
//
// Conventions:
//   - New returns a Config populated with defaults.
//   - Load layers defaults, an optional YAML file and environment variables.
//   - Validate rejects out-of-range values before any frame is processed;
//     the resulting Config is treated as immutable for the session lifetime.
package config

import "time"

// Config contains process and pipeline configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the status HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CameraID labels events produced by this session.
	CameraID string `koanf:"camera_id"`

	// FrameInterval is the pacing of the simulated frame source.
	FrameInterval time.Duration `koanf:"frame_interval"`

	Router     Router     `koanf:"router"`
	Tracking   Tracking   `koanf:"tracking"`
	Stabilizer Stabilizer `koanf:"stabilizer"`
	Baseline   Baseline   `koanf:"baseline"`
	Alert      Alert      `koanf:"alert"`
}

// Router configures detector fan-out and merging.
type Router struct {
	// DynamicClasses are always routed to the fast detector. Every other
	// class is considered rare and handled by the slow detector.
	DynamicClasses []string `koanf:"dynamic_classes"`

	// SlowEvery dispatches the slow detector once every N frames.
	SlowEvery int `koanf:"slow_every"`

	// SlowTriggerFrames is how long a track may stay low-confidence before
	// it forces an out-of-cadence slow dispatch.
	SlowTriggerFrames int `koanf:"slow_trigger_frames"`

	// NMSIoU is the overlap above which the weaker detection is suppressed.
	NMSIoU float64 `koanf:"nms_iou"`

	FastTimeout time.Duration `koanf:"fast_timeout"`
	SlowTimeout time.Duration `koanf:"slow_timeout"`

	// MaxSlowAgeFrames discards slow results that arrive later than this.
	MaxSlowAgeFrames int `koanf:"max_slow_age_frames"`

	SlowQueueSize int `koanf:"slow_queue_size"`
	SlowWorkers   int `koanf:"slow_workers"`
}

// Tracking configures identity association.
type Tracking struct {
	IoUThreshold float64 `koanf:"iou_threshold"`
	GraceFrames  int     `koanf:"grace_frames"`
	HistorySize  int     `koanf:"history_size"`
}

// Stabilizer configures class locking.
type Stabilizer struct {
	LockRun              int     `koanf:"lock_run"`
	UnlockContradictions int     `koanf:"unlock_contradictions"`
	MinConfidence        float64 `koanf:"min_confidence"`
}

// Baseline configures the behavioral baseline and anomaly scorer.
type Baseline struct {
	WindowSize     int `koanf:"window_size"`
	DebounceFrames int `koanf:"debounce_frames"`

	// Weights maps metric names (object_count, box_area, centroid_spread)
	// to their weight in the combined score.
	Weights map[string]float64 `koanf:"weights"`

	// TimeWeight scales the hour-of-day context term.
	TimeWeight     float64 `koanf:"time_weight"`
	MinHourSamples int     `koanf:"min_hour_samples"`

	// SeverityEdges are the ascending lower bounds of LOW, MEDIUM, HIGH
	// and CRITICAL on the combined score.
	SeverityEdges []float64 `koanf:"severity_edges"`

	// A track of one of LoiterClasses followed for longer than
	// LoiterDuration while moving slower than LoiterSpeed pixels per second
	// is loitering.
	LoiterDuration time.Duration `koanf:"loiter_duration"`
	LoiterSpeed    float64       `koanf:"loiter_speed"`
	LoiterClasses  []string      `koanf:"loiter_classes"`
}

// ROI is an axis-aligned region of interest in frame pixels.
type ROI struct {
	X      float64 `koanf:"x"`
	Y      float64 `koanf:"y"`
	Width  float64 `koanf:"width"`
	Height float64 `koanf:"height"`
}

// Alert configures the IDLE/MOTION/ALERT state machine.
type Alert struct {
	ROI              ROI           `koanf:"roi"`
	ROIDuration      time.Duration `koanf:"roi_duration"`
	IdleDebounce     time.Duration `koanf:"idle_debounce"`
	Cooldown         time.Duration `koanf:"cooldown"`
	MinAlertInterval time.Duration `koanf:"min_alert_interval"`
}

// Default metric names understood by the baseline learner.
const (
	MetricObjectCount    = "object_count"
	MetricBoxArea        = "box_area"
	MetricCentroidSpread = "centroid_spread"
)

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		Addr:          ":9080",
		CameraID:      "cam-001",
		FrameInterval: 100 * time.Millisecond,
		Router: Router{
			DynamicClasses: []string{
				"person", "bicycle", "car", "motorcycle", "bus", "truck",
				"dog", "cat", "handbag", "suitcase", "backpack",
			},
			SlowEvery:         10,
			SlowTriggerFrames: 5,
			NMSIoU:            0.45,
			FastTimeout:       200 * time.Millisecond,
			SlowTimeout:       2 * time.Second,
			MaxSlowAgeFrames:  30,
			SlowQueueSize:     4,
			SlowWorkers:       1,
		},
		Tracking: Tracking{
			IoUThreshold: 0.3,
			GraceFrames:  10,
			HistorySize:  10,
		},
		Stabilizer: Stabilizer{
			LockRun:              5,
			UnlockContradictions: 3,
			MinConfidence:        0.35,
		},
		Baseline: Baseline{
			WindowSize:     100,
			DebounceFrames: 3,
			Weights: map[string]float64{
				MetricObjectCount:    1.0,
				MetricBoxArea:        1.0,
				MetricCentroidSpread: 1.0,
			},
			TimeWeight:     1.0,
			MinHourSamples: 10,
			SeverityEdges:  []float64{1.5, 2.5, 3.5, 4.5},
			LoiterDuration: 10 * time.Second,
			LoiterSpeed:    15,
			LoiterClasses:  []string{"person"},
		},
		Alert: Alert{
			ROI:              ROI{X: 50, Y: 50, Width: 250, Height: 250},
			ROIDuration:      500 * time.Millisecond,
			IdleDebounce:     time.Second,
			Cooldown:         5 * time.Second,
			MinAlertInterval: 30 * time.Second,
		},
	}
}
