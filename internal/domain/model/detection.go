package model

import "time"

// Source identifies which detector produced a detection.
type Source int

const (
	SourceFast Source = iota
	SourceSlow
)

func (s Source) String() string {
	if s == SourceSlow {
		return "slow"
	}
	return "fast"
}

// Detection is one detector output for one frame.
//
// OriginSeq and OriginTS name the frame the detector actually looked at.
// They differ from the frame being processed for slow-path results that
// arrive late.
type Detection struct {
	Box        Box
	Class      string
	Confidence float64
	Source     Source
	OriginSeq  uint64
	OriginTS   time.Time
}

// LateDetection is a slow-path detection that overlapped a known track when
// the request was dispatched. TrackID refers to that track.
type LateDetection struct {
	Detection
	TrackID int
}

// TrackHint is the position of a live track handed to the slow path at
// dispatch time.
type TrackHint struct {
	TrackID int
	Box     Box
}

// SlowRequest asks the slow detector to look at a frame.
type SlowRequest struct {
	ID    string
	Frame Frame
	Hints []TrackHint
}

// SlowResult carries the slow detector answer for a SlowRequest.
type SlowResult struct {
	Request    SlowRequest
	Detections []Detection
	Err        error
	Latency    time.Duration
}
