package router

import (
	"context"

	"github.com/okian/vigil/internal/domain/model"
)

// Detector is an opaque object detector. Implementations may block, fail
// or ignore ctx; the router never lets them stall a frame.
type Detector interface {
	Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, frame model.Frame) ([]model.Detection, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	return f(ctx, frame)
}

// SlowPath carries requests to the slow detector and its results back.
// Submit must not block; it reports false when the request was not queued.
type SlowPath interface {
	Submit(ctx context.Context, req model.SlowRequest) bool
	Results() <-chan model.SlowResult
	Close(ctx context.Context) error
}
