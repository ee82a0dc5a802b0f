// Package router fans each frame out to a fast detector for dynamic classes
// and, on a sparser cadence, to a slow open-vocabulary detector for the
// rest, then merges both outputs into one candidate list.
//
// The fast detector runs under a deadline on every frame. The slow detector
// runs behind a SlowPath; its results are drained without blocking on later
// frames and tagged with the frame they were computed on.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

const defaultAssociationIoU = 0.3

// RouteResult is the merged detector output for one frame.
type RouteResult struct {
	// Detections are the NMS-merged candidates for track association.
	Detections []model.Detection
	// Late are slow detections that overlapped a track known at dispatch.
	Late []model.LateDetection
	// Degraded is set when a detector failed or timed out.
	Degraded       bool
	SlowDispatched bool
	// Stale counts slow detections discarded for arriving too late.
	Stale int
}

// Router is owned by one session and called from its frame loop only.
type Router struct {
	cfg      config.Router
	fast     Detector
	slow     SlowPath
	dynamic  map[string]struct{}
	assocIoU float64

	frames    uint64
	triggered bool

	newID  func() string
	logger logger.Logger
}

// Option applies a configuration option to the Router.
type Option func(*Router)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAssociationIoU sets the overlap a late slow detection needs with a
// dispatch-time track to be reconciled against it.
func WithAssociationIoU(iou float64) Option {
	return func(r *Router) {
		if iou > 0 && iou <= 1 {
			r.assocIoU = iou
		}
	}
}

// WithIDGenerator overrides slow request id generation.
func WithIDGenerator(fn func() string) Option {
	return func(r *Router) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// New creates a Router. fast must not be nil; slow may be nil, in which
// case only the fast detector runs.
func New(cfg config.Router, fast Detector, slow SlowPath, opts ...Option) *Router {
	r := &Router{
		cfg:      cfg,
		fast:     fast,
		slow:     slow,
		dynamic:  make(map[string]struct{}, len(cfg.DynamicClasses)),
		assocIoU: defaultAssociationIoU,
		newID:    uuid.NewString,
		logger:   logger.Get().Named("router"),
	}
	for _, c := range cfg.DynamicClasses {
		r.dynamic[c] = struct{}{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsDynamic reports whether class is handled by the fast detector.
func (r *Router) IsDynamic(class string) bool {
	_, ok := r.dynamic[class]
	return ok
}

// Trigger requests a slow dispatch on the next frame regardless of cadence.
func (r *Router) Trigger() {
	r.triggered = true
}

// Route runs the detectors for frame. hints are the live tracks, handed to
// the slow path so late results can be reconciled against them.
func (r *Router) Route(ctx context.Context, frame model.Frame, hints []model.TrackHint) RouteResult {
	var out RouteResult

	slowDets := r.drain(ctx, frame, &out)
	r.dispatch(ctx, frame, hints, &out)
	r.frames++

	fastDets, err := r.detectFast(ctx, frame)
	if err != nil {
		out.Degraded = true
		reason := "error"
		if errors.Is(err, ErrDetectorTimeout) {
			reason = "timeout"
		}
		metrics.RecordDetectorError(model.SourceFast.String(), reason)
		r.logger.Warn(ctx, "fast detector failed",
			logger.Uint64("seq", frame.Seq),
			logger.Error(err),
		)
	}

	candidates := make([]model.Detection, 0, len(fastDets)+len(slowDets))
	for _, d := range fastDets {
		if !r.IsDynamic(d.Class) {
			continue
		}
		d.Source = model.SourceFast
		d.OriginSeq = frame.Seq
		d.OriginTS = frame.Timestamp
		candidates = append(candidates, d)
	}
	candidates = append(candidates, slowDets...)
	out.Detections = Suppress(candidates, r.cfg.NMSIoU)
	return out
}

func (r *Router) detectFast(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	type reply struct {
		dets []model.Detection
		err  error
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.FastTimeout)
	defer cancel()

	ch := make(chan reply, 1)
	start := time.Now()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- reply{err: fmt.Errorf("%w: %v", ErrDetectorPanic, p)}
			}
		}()
		dets, err := r.fast.Detect(callCtx, frame)
		ch <- reply{dets: dets, err: err}
	}()

	select {
	case rep := <-ch:
		metrics.RecordDetectorLatency(model.SourceFast.String(), float64(time.Since(start).Microseconds())/1000)
		return rep.dets, rep.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrDetectorTimeout, r.cfg.FastTimeout)
	}
}

func (r *Router) dispatch(ctx context.Context, frame model.Frame, hints []model.TrackHint, out *RouteResult) {
	if r.slow == nil {
		return
	}
	due := r.cfg.SlowEvery > 0 && r.frames%uint64(r.cfg.SlowEvery) == 0
	if !due && !r.triggered {
		return
	}
	req := model.SlowRequest{ID: r.newID(), Frame: frame, Hints: hints}
	if !r.slow.Submit(ctx, req) {
		r.logger.Debug(ctx, "slow request not queued", logger.Uint64("seq", frame.Seq))
		return
	}
	r.triggered = false
	out.SlowDispatched = true
}

// drain collects every slow result that is ready without waiting. Results
// older than MaxSlowAgeFrames are discarded. Detections overlapping a
// dispatch-time track become Late; the rest join this frame's candidates.
func (r *Router) drain(ctx context.Context, frame model.Frame, out *RouteResult) []model.Detection {
	if r.slow == nil {
		return nil
	}
	var merged []model.Detection
	results := r.slow.Results()
	for {
		var res model.SlowResult
		select {
		case got, ok := <-results:
			if !ok {
				return merged
			}
			res = got
		default:
			return merged
		}

		if res.Err != nil {
			out.Degraded = true
			reason := "error"
			if errors.Is(res.Err, context.DeadlineExceeded) || errors.Is(res.Err, ErrDetectorTimeout) {
				reason = "timeout"
			}
			metrics.RecordDetectorError(model.SourceSlow.String(), reason)
			r.logger.Warn(ctx, "slow detector failed",
				logger.String("request", res.Request.ID),
				logger.Uint64("origin_seq", res.Request.Frame.Seq),
				logger.Error(res.Err),
			)
			continue
		}
		metrics.RecordDetectorLatency(model.SourceSlow.String(), float64(res.Latency.Microseconds())/1000)

		origin := res.Request.Frame
		if frame.Seq > origin.Seq && frame.Seq-origin.Seq > uint64(r.cfg.MaxSlowAgeFrames) {
			out.Stale += len(res.Detections)
			metrics.RecordSlowResults("stale", len(res.Detections))
			continue
		}

		for _, d := range res.Detections {
			if r.IsDynamic(d.Class) {
				continue
			}
			d.Source = model.SourceSlow
			d.OriginSeq = origin.Seq
			d.OriginTS = origin.Timestamp
			if id, ok := matchHint(d.Box, res.Request.Hints, r.assocIoU); ok {
				out.Late = append(out.Late, model.LateDetection{Detection: d, TrackID: id})
				continue
			}
			merged = append(merged, d)
		}
	}
}

func matchHint(box model.Box, hints []model.TrackHint, threshold float64) (int, bool) {
	bestID, best := 0, threshold
	found := false
	for _, h := range hints {
		if iou := h.Box.IoU(box); iou > best {
			bestID, best, found = h.TrackID, iou, true
		}
	}
	return bestID, found
}

// Close shuts the slow path down.
func (r *Router) Close(ctx context.Context) error {
	if r.slow == nil {
		return nil
	}
	return r.slow.Close(ctx)
}
