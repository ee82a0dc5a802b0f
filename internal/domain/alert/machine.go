// Package alert implements the IDLE/MOTION/ALERT state machine that turns
// motion, region-of-interest and anomaly signals into the pipeline verdict.
//
// Edges:
//
//	IDLE   -> MOTION  any motion in the frame
//	MOTION -> ALERT   ROI motion held for ROIDuration, or an anomaly >= HIGH,
//	                  provided the cause has not alerted within MinAlertInterval
//	MOTION -> IDLE    no motion for IdleDebounce
//	ALERT  -> IDLE    no trigger for Cooldown
//
// ALERT is never entered from IDLE, and each Step moves at most one edge.
package alert

import (
	"context"
	"time"

	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
)

// CauseROI keys alerts raised by sustained motion inside the region of
// interest. Anomaly-raised alerts are keyed by anomaly type.
const CauseROI = "roi_intrusion"

// Input is what the machine sees for one frame.
type Input struct {
	Timestamp time.Time
	// Motion is set when any object is visible.
	Motion bool
	// ROIMotion is set when a visible object is inside the region of interest.
	ROIMotion bool
	// Anomaly is the anomaly in force on this frame, repeated on every
	// frame it stays held, or nil.
	Anomaly *model.AnomalyEvent
}

// Transition reports the outcome of one Step.
type Transition struct {
	From    model.StateName
	To      model.StateName
	Changed bool
	// Cause is set when this step raised or extended an alert.
	Cause string
	// Throttled is set when a trigger was ignored because its cause alerted
	// within MinAlertInterval.
	Throttled bool
	State     model.PipelineState
}

// Machine is the session's single alert state machine. It is driven from
// the frame loop only and is not safe for concurrent use.
type Machine struct {
	cfg   config.Alert
	roi   model.Box
	state model.PipelineState

	roiSince    time.Time
	lastMotion  time.Time
	lastTrigger time.Time
	lastAlert   map[string]time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMachine creates a machine in IDLE.
func NewMachine(cfg config.Alert, opts ...Option) *Machine {
	m := &Machine{
		cfg:       cfg,
		roi:       model.Box{X: cfg.ROI.X, Y: cfg.ROI.Y, W: cfg.ROI.Width, H: cfg.ROI.Height},
		state:     model.PipelineState{State: model.StateIdle},
		lastAlert: make(map[string]time.Time),
		logger:    logger.Get().Named("alert"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InROI reports whether the centre of box lies inside the region of
// interest. A zero-sized region matches nothing.
func (m *Machine) InROI(box model.Box) bool {
	if m.roi.Area() == 0 {
		return false
	}
	return m.roi.ContainsPoint(box.Center())
}

// State returns the current pipeline state.
func (m *Machine) State() model.PipelineState {
	return m.state
}

// Step advances the machine by one frame.
func (m *Machine) Step(in Input) Transition {
	ts := in.Timestamp
	if in.ROIMotion {
		if m.roiSince.IsZero() {
			m.roiSince = ts
		}
	} else {
		m.roiSince = time.Time{}
	}
	if in.Motion {
		m.lastMotion = ts
	}

	tr := Transition{From: m.state.State}

	switch m.state.State {
	case model.StateIdle:
		if in.Motion {
			m.enter(model.StateMotion, ts)
		}

	case model.StateMotion:
		cause := m.trigger(in)
		switch {
		case cause != "" && m.allowed(cause, ts):
			m.lastAlert[cause] = ts
			m.lastTrigger = ts
			m.enter(model.StateAlert, ts)
			m.state.CooldownUntil = ts.Add(m.cfg.Cooldown)
			tr.Cause = cause
		case cause != "":
			tr.Throttled = true
		case !in.Motion && ts.Sub(m.lastMotion) >= m.cfg.IdleDebounce:
			m.enter(model.StateIdle, ts)
		}

	case model.StateAlert:
		cause := ""
		if in.ROIMotion {
			cause = CauseROI
		}
		if c := anomalyCause(in.Anomaly); c != "" {
			cause = c
		}
		if cause != "" {
			m.lastTrigger = ts
			m.state.CooldownUntil = ts.Add(m.cfg.Cooldown)
			tr.Cause = cause
		} else if !ts.Before(m.state.CooldownUntil) {
			m.enter(model.StateIdle, ts)
		}
	}

	tr.To = m.state.State
	tr.Changed = tr.From != tr.To
	tr.State = m.state
	if tr.Changed {
		m.logger.Info(context.Background(), "pipeline state changed",
			logger.String("from", string(tr.From)),
			logger.String("to", string(tr.To)),
			logger.String("cause", tr.Cause),
		)
	}
	return tr
}

// trigger returns the alert cause present in MOTION, anomalies first.
func (m *Machine) trigger(in Input) string {
	if c := anomalyCause(in.Anomaly); c != "" {
		return c
	}
	if !m.roiSince.IsZero() && in.Timestamp.Sub(m.roiSince) >= m.cfg.ROIDuration {
		return CauseROI
	}
	return ""
}

func anomalyCause(ev *model.AnomalyEvent) string {
	if ev == nil || ev.Severity < model.SeverityHigh {
		return ""
	}
	return string(ev.Type)
}

func (m *Machine) allowed(cause string, ts time.Time) bool {
	last, ok := m.lastAlert[cause]
	return !ok || ts.Sub(last) >= m.cfg.MinAlertInterval
}

func (m *Machine) enter(s model.StateName, ts time.Time) {
	m.state.State = s
	m.state.LastTransition = ts
	if s != model.StateAlert {
		m.state.CooldownUntil = time.Time{}
	}
}
