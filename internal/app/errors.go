package app

import "errors"

// Sentinel errors for session lifecycle and frame acquisition.
var (
	ErrSessionStopped = errors.New("session stopped")
	ErrNoFrame        = errors.New("no frame available")
	ErrNoDetector     = errors.New("fast detector is required")
)
