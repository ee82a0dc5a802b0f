package simulate

import "time"

// Config scripts a synthetic scene.
type Config struct {
	Frames   int           // Number of frames to emit
	Interval time.Duration // Simulated time between frames
	Start    time.Time     // Timestamp of the first frame
	Realtime bool          // Sleep Interval between frames

	Walkers int // Background people pacing at the bottom of the frame, at most 3 distinct rows

	SpikeAt    int // First frame of the crowd spike, 0 disables it
	SpikeLen   int
	SpikeCount int

	IntruderAt  int // First frame a person stands in the region of interest, 0 disables it
	IntruderLen int

	FastLatency   time.Duration
	SlowLatency   time.Duration
	FastFailEvery int // Fail the fast detector on every Nth frame, 0 never
	SlowFailEvery int
	DropEvery     int // Drop every Nth frame at the source, 0 never
}

// DefaultConfig returns a 30 second scene at 10 fps: a warm-up long enough
// to fill the baseline, a crowd spike, and later an intruder in the default
// region of interest.
func DefaultConfig() Config {
	return Config{
		Frames:      300,
		Interval:    100 * time.Millisecond,
		Start:       time.Date(2026, time.January, 5, 14, 0, 0, 0, time.UTC),
		Walkers:     3,
		SpikeAt:     150,
		SpikeLen:    20,
		SpikeCount:  8,
		IntruderAt:  220,
		IntruderLen: 30,
	}
}

// Stats summarizes a simulation run.
type Stats struct {
	Frames           int
	Processed        int
	Missed           int
	Degraded         int
	Anomalies        int
	AnomalyTypes     map[string]int
	Alerts           []string // causes, in order
	Transitions      int
	MaxTracks        int
	LockedTracks     int
	FinalState       string
	LearningComplete bool
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
