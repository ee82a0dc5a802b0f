package app

import (
	"time"

	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithLogger sets a custom logger for the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEventLog replaces the default in-memory event log.
func WithEventLog(store repository.Store) Option {
	return func(s *Session) {
		if store != nil {
			s.events = store
		}
	}
}

// WithEventLogSize sets how many recent events the default log retains.
func WithEventLogSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.eventLogSize = n
		}
	}
}

// WithClock overrides the clock used to stamp frames the source failed to
// deliver.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionID sets the session id instead of generating one.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}
