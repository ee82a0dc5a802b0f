package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/vigil/internal/domain/ring"
	"github.com/okian/vigil/pkg/metrics"
)

const defaultCapacity = 256

// EventLog is a Store backed by a fixed-capacity ring. It is safe for one
// writer and many readers.
type EventLog struct {
	mu       sync.RWMutex
	entries  *ring.Ring[Entry]
	capacity int
	newID    func() string
}

// NewEventLog creates an empty log.
func NewEventLog(opts ...Option) *EventLog {
	l := &EventLog{capacity: defaultCapacity, newID: uuid.NewString}
	for _, opt := range opts {
		opt(l)
	}
	l.entries = ring.New[Entry](l.capacity)
	return l
}

// Append implements Store.
func (l *EventLog) Append(_ context.Context, e Entry) (Entry, error) { //nolint:gocritic // hugeParam: Entry is stored by value
	if e.ID == "" {
		e.ID = l.newID()
	}
	l.mu.Lock()
	l.entries.Push(e)
	size := l.entries.Len()
	l.mu.Unlock()

	metrics.UpdateEventLogSize(size)
	return e, nil
}

// Recent implements Store.
func (l *EventLog) Recent(_ context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, fmt.Errorf("recent %d: %w", n, ErrInvalidLimit)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.entries.Len()
	if n > size {
		n = size
	}
	out := make([]Entry, 0, n)
	for i := size - 1; i >= size-n; i-- {
		out = append(out, l.entries.At(i))
	}
	return out, nil
}

// Get implements Store.
func (l *EventLog) Get(_ context.Context, id string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := l.entries.Len() - 1; i >= 0; i-- {
		if e := l.entries.At(i); e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
}

// Count implements Store.
func (l *EventLog) Count(_ context.Context) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries.Len()
}
