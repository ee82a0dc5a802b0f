// Package stabilizer turns a track's noisy label history into one
// flicker-resistant label.
//
// Locking needs a trailing run of identical labels; unlocking needs several
// disagreements within the history window. While unlocked the stabilizer
// reports the plurality label, or Unknown when there is none.
package stabilizer

import (
	"context"

	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/internal/domain/tracking"
	"github.com/okian/vigil/pkg/logger"
)

// Unknown is reported when no label holds a plurality.
const Unknown = "unknown"

// LockChange describes what a call did to the lock.
type LockChange int

const (
	LockUnchanged LockChange = iota
	LockAcquired
	LockReleased
	// LockSwitched means the lock was released and immediately re-acquired
	// on a different label.
	LockSwitched
)

// Result is the stabilized view of one track after Apply.
type Result struct {
	Label      string
	Confidence float64
	Locked     bool
	Changed    bool
	Lock       LockChange
	// LowConfidence is set while an unlocked track's mean confidence stays
	// below the configured minimum.
	LowConfidence bool
}

// Stabilizer applies the lock rules. It holds no per-track state; all state
// lives on the track.
type Stabilizer struct {
	cfg    config.Stabilizer
	logger logger.Logger
}

// Option applies a configuration option to the Stabilizer.
type Option func(*Stabilizer)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Stabilizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Stabilizer.
func New(cfg config.Stabilizer, opts ...Option) *Stabilizer {
	s := &Stabilizer{cfg: cfg, logger: logger.Get().Named("stabilizer")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply re-evaluates the lock for t and writes the stabilized label back.
//
// A locked track is released once UnlockContradictions entries of its
// window disagree, unless the trailing run already confirms the locked
// label. An unlocked track locks on a trailing run of LockRun identical
// labels.
func (s *Stabilizer) Apply(t *tracking.Track) Result {
	hist := t.History()
	prevLabel := t.Label
	prevLocked := t.LockedClass

	if len(hist) == 0 {
		t.Label, t.Confidence, t.RunLength, t.Contradictions = Unknown, 0, 0, 0
		return Result{Label: Unknown, Changed: prevLabel != Unknown}
	}

	last := hist[len(hist)-1].Label
	run := 1
	for i := len(hist) - 2; i >= 0 && hist[i].Label == last; i-- {
		run++
	}
	t.RunLength = run

	if t.LockedClass != "" {
		confirmed := last == t.LockedClass && run >= s.cfg.LockRun
		if !confirmed && disagreements(hist, t.LockedClass) >= s.cfg.UnlockContradictions {
			t.LockedClass = ""
		}
	}
	if t.LockedClass == "" && run >= s.cfg.LockRun {
		t.LockedClass = last
	}

	var res Result
	if t.LockedClass != "" {
		t.Contradictions = disagreements(hist, t.LockedClass)
		res.Label = t.LockedClass
		res.Locked = true
	} else {
		t.Contradictions = 0
		res.Label = plurality(hist)
	}
	res.Confidence = meanConfidence(hist, res.Label)

	if !res.Locked && s.cfg.MinConfidence > 0 && t.Visible() {
		if meanConfidence(hist, "") < s.cfg.MinConfidence {
			t.LowConfidenceFrames++
		} else {
			t.LowConfidenceFrames = 0
		}
	} else if res.Locked {
		t.LowConfidenceFrames = 0
	}
	res.LowConfidence = t.LowConfidenceFrames > 0

	switch {
	case prevLocked == "" && t.LockedClass != "":
		res.Lock = LockAcquired
	case prevLocked != "" && t.LockedClass == "":
		res.Lock = LockReleased
	case prevLocked != "" && t.LockedClass != prevLocked:
		res.Lock = LockSwitched
	}
	if res.Lock != LockUnchanged {
		s.logger.Debug(context.Background(), "class lock changed",
			logger.Int("track", t.ID),
			logger.String("from", prevLocked),
			logger.String("to", t.LockedClass),
			logger.Int("run", run),
		)
	}

	t.Label, t.Confidence = res.Label, res.Confidence
	res.Changed = res.Label != prevLabel
	return res
}

func disagreements(hist []tracking.Observation, label string) int {
	n := 0
	for _, o := range hist {
		if o.Label != label {
			n++
		}
	}
	return n
}

// plurality returns the label with a strictly highest count, or Unknown.
func plurality(hist []tracking.Observation) string {
	counts := make(map[string]int, len(hist))
	for _, o := range hist {
		counts[o.Label]++
	}
	best, bestN, tie := Unknown, 0, false
	for label, n := range counts {
		switch {
		case n > bestN:
			best, bestN, tie = label, n, false
		case n == bestN:
			tie = true
		}
	}
	if tie {
		return Unknown
	}
	return best
}

// meanConfidence averages the confidence of entries carrying label; an
// empty label averages every entry.
func meanConfidence(hist []tracking.Observation, label string) float64 {
	var sum float64
	var n int
	for _, o := range hist {
		if label == "" || o.Label == label {
			sum += o.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
