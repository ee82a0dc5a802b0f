package repository

import "errors"

// Sentinel kinds for event log errors.
var (
	ErrNotFound     = errors.New("event not found")
	ErrInvalidLimit = errors.New("invalid event limit")
)
