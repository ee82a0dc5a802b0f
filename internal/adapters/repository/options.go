package repository

// Option applies a configuration option to the EventLog.
type Option func(*EventLog)

// WithCapacity sets how many entries are retained.
func WithCapacity(capacity int) Option {
	return func(l *EventLog) {
		if capacity > 0 {
			l.capacity = capacity
		}
	}
}

// WithIDGenerator overrides how missing entry ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(l *EventLog) {
		if fn != nil {
			l.newID = fn
		}
	}
}
