package baseline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/internal/domain/ring"
	"github.com/okian/vigil/internal/domain/tracking"
	"github.com/okian/vigil/pkg/logger"
)

const (
	hoursPerDay = 24

	// timeReasonFloor is the weighted time-context term above which it is
	// itemized as a reason even when another metric dominates.
	timeReasonFloor = 0.5
)

// Assessment is the learner's verdict for one frame.
type Assessment struct {
	// Z holds per-metric z-scores; a metric is absent while its window has
	// fewer than two samples or zero spread.
	Z           map[string]float64
	TimeContext float64
	Score       float64
	Severity    model.Severity
	// Streak counts consecutive frames at or above LOW.
	Streak           int
	LearningComplete bool
	// Suppressed is set while the baseline is still warming up.
	Suppressed bool
	// Held is the lowest severity over the last DebounceFrames frames.
	Held model.Severity
	// Event is set on the frame an anomaly is first raised or escalates.
	Event *model.AnomalyEvent
	// Active is the anomaly in force on this frame: the latest emitted
	// event at the currently held severity, or nil once Held drops below
	// LOW.
	Active *model.AnomalyEvent
}

// Learner holds the rolling baseline of one scene. It is not safe for
// concurrent use; a session owns exactly one.
type Learner struct {
	cfg     config.Baseline
	weights []float64
	windows [len(metricNames)]*ring.Ring[float64]
	hours   [hoursPerDay]*ring.Ring[float64]

	learningComplete bool
	streak           int
	recent           *ring.Ring[model.Severity]
	lastEmitted      model.Severity
	active           *model.AnomalyEvent
	loitering        map[int]bool
	loiterClasses    map[string]bool

	newID  func() string
	logger logger.Logger
}

// Option applies a configuration option to the Learner.
type Option func(*Learner)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(le *Learner) {
		if l != nil {
			le.logger = l
		}
	}
}

// WithIDGenerator overrides how anomaly event ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(le *Learner) {
		if fn != nil {
			le.newID = fn
		}
	}
}

// NewLearner creates an empty, not yet warmed, Learner.
func NewLearner(cfg config.Baseline, opts ...Option) *Learner {
	l := &Learner{
		cfg:     cfg,
		weights: make([]float64, len(metricNames)),
		newID:   uuid.NewString,
		logger:  logger.Get().Named("baseline"),

		loiterClasses: make(map[string]bool, len(cfg.LoiterClasses)),
	}
	for _, c := range cfg.LoiterClasses {
		l.loiterClasses[c] = true
	}
	for i, name := range metricNames {
		w, ok := cfg.Weights[name]
		if !ok {
			w = 1
		}
		l.weights[i] = w
	}
	for _, opt := range opts {
		opt(l)
	}
	l.Reset()
	return l
}

// Reset discards every sample and clears learning_complete. It is meant for
// session restarts only.
func (l *Learner) Reset() {
	for i := range l.windows {
		l.windows[i] = ring.New[float64](l.cfg.WindowSize)
	}
	for h := range l.hours {
		l.hours[h] = ring.New[float64](l.cfg.WindowSize)
	}
	l.learningComplete = false
	l.clearDebounce()
	l.loitering = make(map[int]bool)
}

func (l *Learner) clearDebounce() {
	l.streak = 0
	l.recent = ring.New[model.Severity](l.cfg.DebounceFrames)
	l.lastEmitted = model.SeverityNone
	l.active = nil
}

// LearningComplete reports whether the rolling window has filled once.
func (l *Learner) LearningComplete() bool {
	return l.learningComplete
}

// Observe scores m against the baseline learned so far and then folds m
// into it. Events are only produced once learning is complete, at the
// lowest severity held over the last DebounceFrames frames. A sustained
// anomaly stays Active on every frame and is re-emitted only when the held
// severity escalates.
func (l *Learner) Observe(ts time.Time, m Metrics) Assessment {
	vals := m.values()
	warmed := l.learningComplete

	a := Assessment{Z: make(map[string]float64, len(metricNames))}
	zs := make([]float64, len(metricNames))
	for i, name := range metricNames {
		w := l.windows[i]
		if w.Len() < 2 {
			continue
		}
		mean, sd := stat.MeanStdDev(w.Values(), nil)
		if sd == 0 || math.IsNaN(sd) {
			continue
		}
		zs[i] = (vals[i] - mean) / sd
		a.Z[name] = zs[i]
	}

	hour := ts.Hour()
	hourMean, hourReady := l.hourMean(hour)
	if hourReady {
		a.TimeContext = math.Max(0, m.ObjectCount-hourMean) / (hourMean + 1)
	}
	a.Score = math.Abs(floats.Dot(l.weights, zs)) + l.cfg.TimeWeight*a.TimeContext
	a.Severity = l.severity(a.Score)

	for i := range metricNames {
		l.windows[i].Push(vals[i])
	}
	l.hours[hour].Push(m.ObjectCount)
	if !l.learningComplete && l.windows[0].Full() {
		l.learningComplete = true
		l.logger.Info(context.Background(), "baseline learning complete",
			logger.Int("samples", l.windows[0].Len()))
	}
	a.LearningComplete = l.learningComplete

	if !warmed {
		a.Suppressed = true
		l.clearDebounce()
		return a
	}

	if a.Severity >= model.SeverityLow {
		l.streak++
	} else {
		l.streak = 0
	}
	a.Streak = l.streak
	l.recent.Push(a.Severity)
	a.Held = l.held()

	if a.Held < model.SeverityLow {
		l.lastEmitted = model.SeverityNone
		l.active = nil
		return a
	}
	if a.Held > l.lastEmitted {
		l.lastEmitted = a.Held
		l.active = l.event(ts, m, a, zs, hour, hourMean)
		a.Event = l.active
		a.Active = l.active
		return a
	}

	cur := *l.active
	cur.Severity = a.Held
	cur.Score = a.Score
	a.Active = &cur
	return a
}

// held is the minimum severity over a full debounce ring, NONE otherwise.
func (l *Learner) held() model.Severity {
	if !l.recent.Full() {
		return model.SeverityNone
	}
	h := model.SeverityCritical
	for _, s := range l.recent.Values() {
		if s < h {
			h = s
		}
	}
	return h
}

func (l *Learner) hourMean(hour int) (float64, bool) {
	w := l.hours[hour]
	if w.Len() < l.cfg.MinHourSamples || w.Len() == 0 {
		return 0, false
	}
	return stat.Mean(w.Values(), nil), true
}

func (l *Learner) severity(score float64) model.Severity {
	s := model.SeverityNone
	for i, edge := range l.cfg.SeverityEdges {
		if score >= edge {
			s = model.Severity(i + 1)
		}
	}
	return s
}

func (l *Learner) event(ts time.Time, m Metrics, a Assessment, zs []float64, hour int, hourMean float64) *model.AnomalyEvent {
	ev := &model.AnomalyEvent{
		ID:        l.newID(),
		Timestamp: ts,
		Severity:  a.Held,
		Score:     a.Score,
		Type:      model.AnomalyUnknown,
	}

	var (
		dominant    = -1
		dominantMag float64
	)
	for i, name := range metricNames {
		mag := math.Abs(l.weights[i] * zs[i])
		if mag > dominantMag {
			dominant, dominantMag = i, mag
		}
		if math.Abs(zs[i]) > ev.Deviation {
			ev.Deviation = math.Abs(zs[i])
		}
		if _, ok := a.Z[name]; ok && math.Abs(zs[i]) >= l.cfg.SeverityEdges[0] {
			ev.Reasons = append(ev.Reasons, fmt.Sprintf("%s deviation: %.1fσ", metricLabels[name], zs[i]))
		}
	}

	timeTerm := l.cfg.TimeWeight * a.TimeContext
	timeDominant := timeTerm > dominantMag
	if timeTerm > 0 && (timeDominant || timeTerm >= timeReasonFloor) {
		ev.Reasons = append(ev.Reasons, fmt.Sprintf("unusual for %02d:00: %.0f objects, expected %.1f",
			hour, m.ObjectCount, hourMean))
	}

	switch {
	case timeDominant:
		ev.Type = model.AnomalyTimeContext
	case dominant < 0:
	case metricNames[dominant] == config.MetricObjectCount:
		ev.Type = model.AnomalySuddenMotion
	case metricNames[dominant] == config.MetricBoxArea:
		ev.Type = model.AnomalySize
	}

	if len(ev.Reasons) == 0 {
		ev.Reasons = append(ev.Reasons, fmt.Sprintf("combined deviation: %.1fσ", a.Score))
	}
	if edge := l.cfg.SeverityEdges[len(l.cfg.SeverityEdges)-1]; edge > 0 {
		ev.Confidence = math.Min(1, a.Score/edge)
	}

	l.logger.Info(context.Background(), "anomaly detected",
		logger.String("id", ev.ID),
		logger.String("type", string(ev.Type)),
		logger.String("severity", ev.Severity.String()),
		logger.Float64("score", ev.Score),
		logger.Int("streak", a.Streak),
	)
	return ev
}

// Loitering returns one event per track that has just started loitering:
// a visible track of a loiter class followed for longer than
// LoiterDuration while moving slower than LoiterSpeed. A track is reported
// again only after it has stopped loitering in between.
func (l *Learner) Loitering(ts time.Time, tracks []*tracking.Track) []*model.AnomalyEvent {
	var out []*model.AnomalyEvent
	now := make(map[int]bool, len(l.loitering))
	for _, t := range tracks {
		if !t.Visible() || !l.loiterClasses[t.Label] {
			continue
		}
		dwell, speed := t.Dwell(), t.Speed()
		if dwell <= l.cfg.LoiterDuration || speed >= l.cfg.LoiterSpeed {
			continue
		}
		now[t.ID] = true
		if l.loitering[t.ID] {
			continue
		}

		cx, cy := t.Box.Center()
		ev := &model.AnomalyEvent{
			ID:         l.newID(),
			Timestamp:  ts,
			Type:       model.AnomalyLoitering,
			Severity:   model.SeverityMedium,
			Confidence: 1,
			Reasons: []string{fmt.Sprintf("track %d stationary for %.1fs at (%.0f, %.0f), moving %.1f px/s",
				t.ID, dwell.Seconds(), cx, cy, speed)},
			TrackIDs: []int{t.ID},
		}
		if l.cfg.LoiterSpeed > 0 {
			ev.Confidence = 1 - speed/l.cfg.LoiterSpeed
		}
		l.logger.Info(context.Background(), "loitering detected",
			logger.String("id", ev.ID),
			logger.Int("track", t.ID),
			logger.Float64("dwell_s", dwell.Seconds()),
			logger.Float64("speed", speed),
		)
		out = append(out, ev)
	}
	l.loitering = now
	return out
}
