// Package app wires the temporal-reasoning pipeline of one camera into a
// Session: route detections, maintain tracks, stabilize their classes,
// score the scene against its baseline and drive the alert state.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vigil/internal/adapters/mq/queue"
	"github.com/okian/vigil/internal/adapters/mq/worker"
	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/internal/domain/alert"
	"github.com/okian/vigil/internal/domain/baseline"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/internal/domain/router"
	"github.com/okian/vigil/internal/domain/stabilizer"
	"github.com/okian/vigil/internal/domain/tracking"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

const defaultEventLogSize = 256

// Session is one independent pipeline instance. Frames are processed one
// at a time; Status, Latest and Recent may be called concurrently with the
// frame loop.
type Session struct {
	cfg *config.Config
	id  string

	router     *router.Router
	pool       *worker.Pool
	tracks     *tracking.Manager
	stabilizer *stabilizer.Stabilizer
	learner    *baseline.Learner
	machine    *alert.Machine

	events       repository.Store
	eventLogSize int

	// frameMu serializes the per-frame call path and Close.
	frameMu sync.Mutex
	closed  bool
	lastSeq uint64

	mu     sync.RWMutex
	latest model.Verdict
	status model.Status

	now    func() time.Time
	logger logger.Logger
}

// NewSession validates cfg and builds a session around the given detectors.
// slow may be nil, in which case only the fast detector runs.
func NewSession(cfg *config.Config, fast router.Detector, slow worker.Detector, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fast == nil {
		return nil, ErrNoDetector
	}

	s := &Session{
		cfg:          cfg,
		id:           uuid.NewString(),
		eventLogSize: defaultEventLogSize,
		now:          time.Now,
		logger:       logger.Get().Named("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = repository.NewEventLog(repository.WithCapacity(s.eventLogSize))
	}

	var slowPath router.SlowPath
	if slow != nil {
		q := queue.NewInMemoryQueue(queue.WithCapacity(cfg.Router.SlowQueueSize))
		s.pool = worker.NewPool(slow, q,
			worker.WithWorkers(cfg.Router.SlowWorkers),
			worker.WithDetectTimeout(cfg.Router.SlowTimeout),
		)
		s.pool.Start(context.Background())
		slowPath = s.pool
	}

	s.router = router.New(cfg.Router, fast, slowPath)
	s.tracks = tracking.NewManager(cfg.Tracking)
	s.stabilizer = stabilizer.New(cfg.Stabilizer)
	s.learner = baseline.NewLearner(cfg.Baseline)
	s.machine = alert.NewMachine(cfg.Alert)

	initial := s.machine.State()
	s.status = model.Status{SessionID: s.id, CameraID: cfg.CameraID, State: initial.State}
	s.latest = model.Verdict{State: initial}

	metrics.UpdatePipelineState(initial.State.Ordinal())
	metrics.UpdateLearningComplete(false)
	metrics.UpdateActiveTracks(0)

	s.logger.Info(context.Background(), "session started",
		logger.String("session", s.id),
		logger.String("camera", cfg.CameraID),
		logger.Bool("slow_detector", slow != nil),
	)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// ProcessFrame runs one frame through the pipeline and returns its verdict.
// Detector failures never fail the frame; they mark it degraded.
func (s *Session) ProcessFrame(ctx context.Context, frame model.Frame) (model.Verdict, error) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	if s.closed {
		return model.Verdict{}, ErrSessionStopped
	}
	if err := ctx.Err(); err != nil {
		return model.Verdict{}, err
	}
	start := time.Now()
	s.lastSeq = frame.Seq

	routed := s.router.Route(ctx, frame, s.tracks.Hints())
	upd := s.tracks.Update(frame, routed.Detections)
	applied, discarded := s.tracks.Reconcile(routed.Late)
	metrics.RecordSlowResults("late_applied", applied)
	metrics.RecordSlowResults("late_discarded", discarded)
	metrics.RecordTracksCreated(len(upd.Created))
	metrics.RecordTracksDestroyed(len(upd.Destroyed))

	tracks := s.tracks.Tracks()
	views, scene := s.stabilize(ctx, tracks)

	assessment := s.learner.Observe(frame.Timestamp, baseline.MetricsFromTracks(tracks))
	var raised []*model.AnomalyEvent
	if ev := assessment.Event; ev != nil {
		ev.TrackIDs = scene.visible
		raised = append(raised, ev)
	}
	loitering := s.learner.Loitering(frame.Timestamp, tracks)
	raised = append(raised, loitering...)
	for _, ev := range raised {
		ev.CameraID = s.cfg.CameraID
		ev.Seq = frame.Seq
		metrics.RecordAnomaly(string(ev.Type), ev.Severity.String())
		s.logEvent(ctx, repository.Entry{
			ID:        ev.ID,
			Kind:      repository.KindAnomaly,
			Seq:       frame.Seq,
			Timestamp: ev.Timestamp,
			Anomaly:   ev,
		})
	}

	active := assessment.Active
	tr := s.machine.Step(alert.Input{
		Timestamp: frame.Timestamp,
		Motion:    len(scene.visible) > 0,
		ROIMotion: scene.roi,
		Anomaly:   active,
	})
	s.recordTransition(ctx, frame.Seq, frame.Timestamp, tr)

	if active == nil && len(loitering) > 0 {
		active = loitering[0]
	}
	v := model.Verdict{
		Seq:        frame.Seq,
		Timestamp:  frame.Timestamp,
		State:      tr.State,
		Tracks:     views,
		Anomaly:    active,
		AlertCause: tr.Cause,
		Score:      assessment.Score,
		Degraded:   routed.Degraded,
	}

	s.mu.Lock()
	s.latest = v
	st := &s.status
	st.FramesAnalyzed++
	st.AnomaliesDetected += uint64(len(raised))
	if routed.Degraded {
		st.DegradedFrames++
	}
	st.TotalLocks += uint64(scene.locks)
	st.TotalUnlocks += uint64(scene.unlocks)
	st.LockedTracks = scene.locked
	st.ActiveTrackCount = len(tracks)
	st.State = tr.State.State
	st.LearningComplete = assessment.LearningComplete
	s.mu.Unlock()

	if routed.Degraded {
		metrics.RecordFrameDegraded()
	}
	metrics.UpdateActiveTracks(len(tracks))
	metrics.UpdateAnomalyScore(assessment.Score)
	metrics.UpdateLearningComplete(assessment.LearningComplete)
	metrics.RecordFrameProcessed(float64(time.Since(start).Microseconds()) / 1000)
	return v, nil
}

// sceneSummary is what the stabilization pass learns about the frame.
type sceneSummary struct {
	visible []int
	roi     bool
	locked  int
	locks   int
	unlocks int
}

func (s *Session) stabilize(ctx context.Context, tracks []*tracking.Track) ([]model.TrackView, sceneSummary) {
	var sum sceneSummary
	views := make([]model.TrackView, 0, len(tracks))
	trigger := s.cfg.Router.SlowTriggerFrames

	for _, t := range tracks {
		res := s.stabilizer.Apply(t)
		switch res.Lock {
		case stabilizer.LockAcquired:
			sum.locks++
			metrics.RecordClassLock()
		case stabilizer.LockReleased:
			sum.unlocks++
			metrics.RecordClassUnlock()
		case stabilizer.LockSwitched:
			sum.locks++
			sum.unlocks++
			metrics.RecordClassUnlock()
			metrics.RecordClassLock()
		}
		if res.Locked {
			sum.locked++
		}
		if res.LowConfidence && trigger > 0 && t.LowConfidenceFrames%trigger == 0 {
			s.logger.Debug(ctx, "low confidence track, requesting slow pass",
				logger.Int("track", t.ID),
				logger.Int("frames", t.LowConfidenceFrames),
			)
			s.router.Trigger()
		}
		if t.Visible() {
			sum.visible = append(sum.visible, t.ID)
			if s.machine.InROI(t.Box) {
				sum.roi = true
			}
		}
		views = append(views, t.View())
	}
	return views, sum
}

// MissFrame advances the session over a frame the source failed to
// deliver. Tracks age by one tick and the baseline is left untouched.
func (s *Session) MissFrame(ctx context.Context, ts time.Time) model.Verdict {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	if s.closed {
		return s.Latest()
	}

	destroyed := s.tracks.Miss(ts)
	metrics.RecordTracksDestroyed(len(destroyed))
	metrics.RecordFrameMissed()

	tracks := s.tracks.Tracks()
	views := make([]model.TrackView, 0, len(tracks))
	for _, t := range tracks {
		views = append(views, t.View())
	}

	tr := s.machine.Step(alert.Input{Timestamp: ts})
	s.recordTransition(ctx, s.lastSeq, ts, tr)

	v := model.Verdict{
		Seq:       s.lastSeq,
		Timestamp: ts,
		State:     tr.State,
		Tracks:    views,
		Missed:    true,
	}

	s.mu.Lock()
	s.latest = v
	s.status.MissedFrames++
	s.status.ActiveTrackCount = len(tracks)
	s.status.State = tr.State.State
	s.mu.Unlock()

	metrics.UpdateActiveTracks(len(tracks))
	return v
}

func (s *Session) recordTransition(ctx context.Context, seq uint64, ts time.Time, tr alert.Transition) {
	metrics.UpdatePipelineState(tr.State.State.Ordinal())
	if !tr.Changed {
		return
	}
	metrics.RecordStateTransition(string(tr.From), string(tr.To))
	kind := repository.KindTransition
	if tr.To == model.StateAlert {
		kind = repository.KindAlert
		metrics.RecordAlert(tr.Cause)
	}
	s.logEvent(ctx, repository.Entry{
		Kind:      kind,
		Seq:       seq,
		Timestamp: ts,
		From:      tr.From,
		To:        tr.To,
		Cause:     tr.Cause,
	})
}

func (s *Session) logEvent(ctx context.Context, e repository.Entry) { //nolint:gocritic // hugeParam: Entry is stored by value
	if _, err := s.events.Append(ctx, e); err != nil {
		metrics.RecordErrorByComponent("session", "event_log")
		s.logger.Warn(ctx, "failed to record event", logger.String("kind", string(e.Kind)), logger.Error(err))
	}
}

// Run pulls frames from source until it reports io.EOF or ctx is done,
// handing every verdict to renderer. Dropped frames become missed frames.
func (s *Session) Run(ctx context.Context, source FrameSource, renderer Renderer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := source.Next(ctx)
		var v model.Verdict
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if !errors.Is(err, ErrNoFrame) {
				s.logger.Warn(ctx, "frame read failed", logger.Error(err))
			}
			ts := frame.Timestamp
			if ts.IsZero() {
				ts = s.now()
			}
			v = s.MissFrame(ctx, ts)
		default:
			v, err = s.ProcessFrame(ctx, frame)
			if err != nil {
				return err
			}
		}

		if renderer != nil {
			renderer.Render(ctx, v)
		}
	}
}

// Status returns a snapshot of the session counters.
func (s *Session) Status() model.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Latest returns the most recent verdict.
func (s *Session) Latest() model.Verdict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Recent returns up to n logged events, newest first.
func (s *Session) Recent(ctx context.Context, n int) ([]repository.Entry, error) {
	return s.events.Recent(ctx, n)
}

// Close stops the slow path and discards the pipeline. A second call
// returns ErrSessionStopped.
func (s *Session) Close(ctx context.Context) error {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	if s.closed {
		return ErrSessionStopped
	}
	s.closed = true

	err := s.router.Close(ctx)
	s.logger.Info(ctx, "session stopped",
		logger.String("session", s.id),
		logger.Uint64("frames", s.Status().FramesAnalyzed),
	)
	if err != nil {
		return fmt.Errorf("close slow path: %w", err)
	}
	return nil
}
