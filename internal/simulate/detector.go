package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/vigil/internal/domain/model"
)

// Detector replays the scene as a detector would see it. The fast variant
// misses static objects; the slow variant sees everything.
type Detector struct {
	scene     *Scene
	slow      bool
	latency   time.Duration
	failEvery int
}

// NewFastDetector returns the per-frame detector of cfg's scene.
func NewFastDetector(scene *Scene, cfg Config) *Detector {
	return &Detector{scene: scene, latency: cfg.FastLatency, failEvery: cfg.FastFailEvery}
}

// NewSlowDetector returns the open-vocabulary detector of cfg's scene.
func NewSlowDetector(scene *Scene, cfg Config) *Detector {
	return &Detector{scene: scene, slow: true, latency: cfg.SlowLatency, failEvery: cfg.SlowFailEvery}
}

// Detect returns jittered boxes for the objects on frame.
func (d *Detector) Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	if d.latency > 0 {
		t := time.NewTimer(d.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if d.failEvery > 0 && frame.Seq%uint64(d.failEvery) == 0 {
		return nil, fmt.Errorf("frame %d: %w", frame.Seq, ErrInjected)
	}

	objs := d.scene.Objects(frame.Seq)
	dets := make([]model.Detection, 0, len(objs))
	for i, o := range objs {
		if o.Static && !d.slow {
			continue
		}
		b := o.Box
		b.X += jitter(frame.Seq, i)
		b.Y += jitter(frame.Seq, i+1)
		dets = append(dets, model.Detection{Box: b, Class: o.Class, Confidence: o.Confidence})
	}
	return dets, nil
}
