// Package tracking maintains object identity across frames.
//
// A Manager associates each frame's detections with live tracks by box
// overlap, spawns tracks for unmatched detections and retires tracks that
// stay unmatched past a grace period. Tracks are owned by the Manager;
// other packages may read and annotate them only during the frame call
// that handed them out.
package tracking

import (
	"math"
	"time"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/internal/domain/ring"
)

// Observation is one class label seen for a track.
type Observation struct {
	Label      string
	Confidence float64
	Seq        uint64
}

// trailSize bounds the centre samples kept for speed estimates.
const trailSize = 30

type trailPoint struct {
	x, y float64
	at   time.Time
}

// Track is the unit of persistent identity.
//
// The stabilization fields (LockedClass through LowConfidenceFrames) are
// written by the class stabilizer; the Manager only resets them on creation.
type Track struct {
	ID        int
	Box       model.Box
	FirstSeen time.Time
	LastSeen  time.Time
	// LastMatchSeq is the frame sequence of the latest successful match.
	LastMatchSeq uint64
	// Age counts frames since creation.
	Age    int
	Missed int
	Source model.Source

	history *ring.Ring[Observation]
	trail   *ring.Ring[trailPoint]

	// LockedClass is empty while unlocked.
	LockedClass string
	// RunLength is the length of the trailing run of identical labels.
	RunLength int
	// Contradictions counts history entries disagreeing with LockedClass.
	Contradictions int
	// Label and Confidence are the stabilized output.
	Label               string
	Confidence          float64
	LowConfidenceFrames int
}

func newTrack(id int, det model.Detection, seq uint64, ts time.Time, historySize int) *Track {
	t := &Track{
		ID:           id,
		Box:          det.Box,
		FirstSeen:    ts,
		LastSeen:     ts,
		LastMatchSeq: seq,
		Source:       det.Source,
		history:      ring.New[Observation](historySize),
		trail:        ring.New[trailPoint](trailSize),
	}
	t.observe(det, seq)
	t.move(det.Box, ts)
	return t
}

func (t *Track) move(box model.Box, ts time.Time) {
	cx, cy := box.Center()
	t.trail.Push(trailPoint{x: cx, y: cy, at: ts})
}

// Dwell is how long the track has been followed.
func (t *Track) Dwell() time.Duration {
	return t.LastSeen.Sub(t.FirstSeen)
}

// Speed is the mean centre speed in pixels per second over the recent
// trail, or 0 with fewer than two timed samples.
func (t *Track) Speed() float64 {
	pts := t.trail.Values()
	var dist, secs float64
	for i := 1; i < len(pts); i++ {
		dt := pts[i].at.Sub(pts[i-1].at).Seconds()
		if dt <= 0 {
			continue
		}
		dist += math.Hypot(pts[i].x-pts[i-1].x, pts[i].y-pts[i-1].y)
		secs += dt
	}
	if secs == 0 {
		return 0
	}
	return dist / secs
}

func (t *Track) observe(det model.Detection, seq uint64) {
	t.history.Push(Observation{Label: det.Class, Confidence: det.Confidence, Seq: seq})
}

// History returns the label history, oldest first.
func (t *Track) History() []Observation {
	return t.history.Values()
}

// HistoryLen returns the number of observations held.
func (t *Track) HistoryLen() int {
	return t.history.Len()
}

// HistoryCap returns the fixed history window size.
func (t *Track) HistoryCap() int {
	return t.history.Cap()
}

// Locked reports whether the track has a locked class.
func (t *Track) Locked() bool {
	return t.LockedClass != ""
}

// Visible reports whether the track was matched on the latest frame.
func (t *Track) Visible() bool {
	return t.Missed == 0
}

// View returns a read-only copy for renderers.
func (t *Track) View() model.TrackView {
	return model.TrackView{
		ID:         t.ID,
		Box:        t.Box,
		Label:      t.Label,
		Confidence: t.Confidence,
		Locked:     t.Locked(),
		Age:        t.Age,
		Missed:     t.Missed,
	}
}
