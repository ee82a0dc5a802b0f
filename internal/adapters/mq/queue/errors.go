package queue

import (
	"errors"
)

// Sentinel errors for queue operations.
var (
	ErrClosed = errors.New("queue closed")
)
