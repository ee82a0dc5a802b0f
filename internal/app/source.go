package app

import (
	"context"

	"github.com/okian/vigil/internal/domain/model"
)

// FrameSource delivers frames to Run. Next returns io.EOF when the stream
// ends and ErrNoFrame (or any other error) when a frame was dropped; a
// dropped frame may still carry the timestamp it was due at.
type FrameSource interface {
	Next(ctx context.Context) (model.Frame, error)
}

// Renderer consumes one verdict per frame. It must not retain the verdict's
// slices past the call.
type Renderer interface {
	Render(ctx context.Context, v model.Verdict)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, v model.Verdict)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, v model.Verdict) {
	f(ctx, v)
}
