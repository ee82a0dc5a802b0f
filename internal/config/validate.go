package config

import (
	"fmt"
	"strings"
)

// Validate checks every tunable and returns ErrInvalidConfig describing the
// first group of violations. A Config that fails validation must not be used
// to start a session.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Addr) == "" {
		add("addr must not be empty")
	}
	if c.FrameInterval < 0 {
		add("frame_interval must not be negative")
	}

	r := c.Router
	if r.SlowEvery < 1 {
		add("router.slow_every must be >= 1, got %d", r.SlowEvery)
	}
	if r.SlowTriggerFrames < 1 {
		add("router.slow_trigger_frames must be >= 1, got %d", r.SlowTriggerFrames)
	}
	if !unitInterval(r.NMSIoU) {
		add("router.nms_iou must be in (0,1], got %g", r.NMSIoU)
	}
	if r.FastTimeout <= 0 || r.SlowTimeout <= 0 {
		add("router timeouts must be positive")
	}
	if r.MaxSlowAgeFrames < 1 {
		add("router.max_slow_age_frames must be >= 1, got %d", r.MaxSlowAgeFrames)
	}
	if r.SlowQueueSize < 1 || r.SlowWorkers < 1 {
		add("router.slow_queue_size and router.slow_workers must be >= 1")
	}

	t := c.Tracking
	if !unitInterval(t.IoUThreshold) {
		add("tracking.iou_threshold must be in (0,1], got %g", t.IoUThreshold)
	}
	if t.GraceFrames < 0 {
		add("tracking.grace_frames must not be negative, got %d", t.GraceFrames)
	}
	if t.HistorySize < 1 {
		add("tracking.history_size must be >= 1, got %d", t.HistorySize)
	}

	s := c.Stabilizer
	if s.LockRun < 1 || s.LockRun > t.HistorySize {
		add("stabilizer.lock_run must be in [1,%d], got %d", t.HistorySize, s.LockRun)
	}
	if s.UnlockContradictions < 1 || s.UnlockContradictions > t.HistorySize {
		add("stabilizer.unlock_contradictions must be in [1,%d], got %d", t.HistorySize, s.UnlockContradictions)
	}
	if s.MinConfidence < 0 || s.MinConfidence > 1 {
		add("stabilizer.min_confidence must be in [0,1], got %g", s.MinConfidence)
	}

	b := c.Baseline
	if b.WindowSize < 2 {
		add("baseline.window_size must be >= 2, got %d", b.WindowSize)
	}
	if b.DebounceFrames < 1 {
		add("baseline.debounce_frames must be >= 1, got %d", b.DebounceFrames)
	}
	for name, w := range b.Weights {
		if w < 0 {
			add("baseline.weights.%s must not be negative, got %g", name, w)
		}
	}
	if b.TimeWeight < 0 {
		add("baseline.time_weight must not be negative, got %g", b.TimeWeight)
	}
	if b.MinHourSamples < 1 {
		add("baseline.min_hour_samples must be >= 1, got %d", b.MinHourSamples)
	}
	if len(b.SeverityEdges) != 4 {
		add("baseline.severity_edges must have 4 entries, got %d", len(b.SeverityEdges))
	} else if b.SeverityEdges[0] <= 0 || !strictlyAscending(b.SeverityEdges) {
		add("baseline.severity_edges must be positive and strictly ascending, got %v", b.SeverityEdges)
	}
	if b.LoiterDuration <= 0 || b.LoiterSpeed < 0 {
		add("baseline.loiter_duration must be positive and baseline.loiter_speed not negative")
	}

	a := c.Alert
	if a.ROI.Width < 0 || a.ROI.Height < 0 {
		add("alert.roi width and height must not be negative")
	}
	if a.ROIDuration < 0 {
		add("alert.roi_duration must not be negative")
	}
	if a.IdleDebounce <= 0 || a.Cooldown <= 0 {
		add("alert.idle_debounce and alert.cooldown must be positive")
	}
	if a.MinAlertInterval < 0 {
		add("alert.min_alert_interval must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func unitInterval(v float64) bool {
	return v > 0 && v <= 1
}

func strictlyAscending(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] <= v[i-1] {
			return false
		}
	}
	return true
}
