// Package repository keeps a bounded, in-memory log of recent pipeline
// events for read-only consumers. Nothing is persisted.
package repository

import (
	"context"
	"time"

	"github.com/okian/vigil/internal/domain/model"
)

// Kind classifies log entries.
type Kind string

const (
	KindAnomaly    Kind = "anomaly"
	KindAlert      Kind = "alert"
	KindTransition Kind = "transition"
)

// Entry is one logged event.
type Entry struct {
	ID        string              `json:"id"`
	Kind      Kind                `json:"kind"`
	Seq       uint64              `json:"seq"`
	Timestamp time.Time           `json:"timestamp"`
	From      model.StateName     `json:"from,omitempty"`
	To        model.StateName     `json:"to,omitempty"`
	Cause     string              `json:"cause,omitempty"`
	Anomaly   *model.AnomalyEvent `json:"anomaly,omitempty"`
}

// Store provides append and read access to recent events.
type Store interface {
	// Append records e, evicting the oldest entry when full. An empty ID
	// is filled in.
	Append(ctx context.Context, e Entry) (Entry, error)

	// Recent returns up to n entries, newest first.
	// Returns ErrInvalidLimit if n is not positive.
	Recent(ctx context.Context, n int) ([]Entry, error)

	// Get returns the entry with id. Returns ErrNotFound if it was never
	// logged or has been evicted.
	Get(ctx context.Context, id string) (Entry, error)

	// Count returns the number of retained entries.
	Count(ctx context.Context) int
}
