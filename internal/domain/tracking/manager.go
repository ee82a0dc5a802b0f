package tracking

import (
	"context"
	"sort"
	"time"

	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
)

// Update summarizes what one frame did to the track set.
type Update struct {
	Matched   int
	Created   []int
	Destroyed []int
	// Dropped counts detections whose only qualifying tracks were claimed.
	Dropped int
}

// Manager owns the live track set of one session.
type Manager struct {
	cfg    config.Tracking
	tracks []*Track // ascending ID
	nextID int
	logger logger.Logger
}

// NewManager creates an empty Manager.
func NewManager(cfg config.Tracking, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		nextID: 1,
		logger: logger.Get().Named("tracking"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update associates the detections of one frame with live tracks.
//
// Detections are visited by descending confidence. Each takes the unclaimed
// track with the highest IoU above the association threshold; ties prefer
// the most recently matched track, then the lowest id. A detection whose
// only qualifying tracks are already claimed is dropped; one that qualifies
// for no track spawns a new track.
func (m *Manager) Update(frame model.Frame, dets []model.Detection) Update {
	var out Update

	for _, t := range m.tracks {
		t.Age++
	}

	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dets[order[a]].Confidence > dets[order[b]].Confidence
	})

	claimed := make(map[int]bool, len(m.tracks))
	var spawn []model.Detection

	for _, idx := range order {
		det := dets[idx]
		best, qualified := m.bestTrack(det.Box, claimed)
		switch {
		case best != nil:
			claimed[best.ID] = true
			best.Box = det.Box
			best.LastSeen = frame.Timestamp
			best.LastMatchSeq = frame.Seq
			best.Missed = 0
			best.observe(det, frame.Seq)
			best.move(det.Box, frame.Timestamp)
			out.Matched++
		case qualified:
			out.Dropped++
		default:
			spawn = append(spawn, det)
		}
	}

	for _, t := range m.tracks {
		if !claimed[t.ID] {
			t.Missed++
		}
	}
	out.Destroyed = m.sweep()

	for _, det := range spawn {
		t := newTrack(m.nextID, det, frame.Seq, frame.Timestamp, m.cfg.HistorySize)
		m.nextID++
		m.tracks = append(m.tracks, t)
		out.Created = append(out.Created, t.ID)
	}

	if len(out.Created) > 0 || len(out.Destroyed) > 0 {
		m.logger.Debug(context.Background(), "tracks updated",
			logger.Uint64("seq", frame.Seq),
			logger.Int("matched", out.Matched),
			logger.Int("created", len(out.Created)),
			logger.Int("destroyed", len(out.Destroyed)),
			logger.Int("live", len(m.tracks)),
		)
	}
	return out
}

// bestTrack returns the winning unclaimed track for box, and whether any
// track (claimed or not) cleared the association threshold.
func (m *Manager) bestTrack(box model.Box, claimed map[int]bool) (*Track, bool) {
	var (
		best      *Track
		bestIoU   float64
		qualified bool
	)
	for _, t := range m.tracks {
		iou := t.Box.IoU(box)
		if iou <= m.cfg.IoUThreshold {
			continue
		}
		qualified = true
		if claimed[t.ID] {
			continue
		}
		if best == nil || iou > bestIoU || (iou == bestIoU && t.LastMatchSeq > best.LastMatchSeq) {
			best, bestIoU = t, iou
		}
	}
	return best, qualified
}

// Miss ages every track by one missed-frame tick without matching anything.
// It is used when the frame source fails to deliver a frame.
func (m *Manager) Miss(_ time.Time) []int {
	for _, t := range m.tracks {
		t.Age++
		t.Missed++
	}
	return m.sweep()
}

// sweep destroys tracks whose missed counter exceeds the grace limit.
func (m *Manager) sweep() []int {
	var destroyed []int
	kept := m.tracks[:0]
	for _, t := range m.tracks {
		if t.Missed > m.cfg.GraceFrames {
			destroyed = append(destroyed, t.ID)
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(m.tracks); i++ {
		m.tracks[i] = nil
	}
	m.tracks = kept
	return destroyed
}

// Reconcile applies late slow-path detections to the tracks they overlapped
// at dispatch time. A detection whose track has since been destroyed is
// discarded rather than spawning a new track, and so is one whose track was
// matched again after the originating frame. Any other target is refreshed
// as if matched on the originating frame.
func (m *Manager) Reconcile(late []model.LateDetection) (applied, discarded int) {
	for _, ld := range late {
		t := m.Get(ld.TrackID)
		if t == nil || t.LastMatchSeq > ld.OriginSeq {
			discarded++
			continue
		}
		t.observe(ld.Detection, ld.OriginSeq)
		t.Box = ld.Box
		t.LastMatchSeq = ld.OriginSeq
		t.LastSeen = ld.OriginTS
		t.Missed = 0
		t.move(ld.Box, ld.OriginTS)
		applied++
	}
	return applied, discarded
}

// Tracks returns the live tracks in ascending id order. The slice is a
// copy; the tracks are shared.
func (m *Manager) Tracks() []*Track {
	out := make([]*Track, len(m.tracks))
	copy(out, m.tracks)
	return out
}

// Get returns the live track with id, or nil.
func (m *Manager) Get(id int) *Track {
	i := sort.Search(len(m.tracks), func(i int) bool { return m.tracks[i].ID >= id })
	if i < len(m.tracks) && m.tracks[i].ID == id {
		return m.tracks[i]
	}
	return nil
}

// Len returns the number of live tracks.
func (m *Manager) Len() int {
	return len(m.tracks)
}

// Hints returns the positions of live tracks for a slow-path request.
func (m *Manager) Hints() []model.TrackHint {
	hints := make([]model.TrackHint, 0, len(m.tracks))
	for _, t := range m.tracks {
		hints = append(hints, model.TrackHint{TrackID: t.ID, Box: t.Box})
	}
	return hints
}
