package simulate

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okian/vigil/internal/app"
	"github.com/okian/vigil/internal/domain/model"
)

// Source emits the frames of a scripted scene. It is not safe for
// concurrent use.
type Source struct {
	cfg  Config
	next uint64
}

// NewSource creates a source that emits cfg.Frames frames.
func NewSource(cfg Config) *Source {
	return &Source{cfg: cfg, next: 1}
}

// Next implements app.FrameSource.
func (s *Source) Next(ctx context.Context) (model.Frame, error) {
	if s.next > uint64(s.cfg.Frames) {
		return model.Frame{}, io.EOF
	}
	if s.cfg.Realtime && s.next > 1 && s.cfg.Interval > 0 {
		t := time.NewTimer(s.cfg.Interval)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return model.Frame{}, ctx.Err()
		case <-t.C:
		}
	}

	seq := s.next
	s.next++
	frame := model.Frame{
		Seq:       seq,
		Timestamp: s.cfg.Start.Add(time.Duration(seq-1) * s.cfg.Interval),
		Width:     FrameWidth,
		Height:    FrameHeight,
	}
	if s.cfg.DropEvery > 0 && seq%uint64(s.cfg.DropEvery) == 0 {
		return model.Frame{Timestamp: frame.Timestamp}, fmt.Errorf("frame %d: %w", seq, app.ErrNoFrame)
	}
	return frame, nil
}
