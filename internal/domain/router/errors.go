package router

import "errors"

// Sentinel errors for detector calls.
var (
	ErrDetectorTimeout = errors.New("detector timed out")
	ErrDetectorPanic   = errors.New("detector panicked")
)
