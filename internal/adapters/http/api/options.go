package api

const (
	defaultEventLimit = 50
	defaultMaxEvents  = 256
)

type options struct {
	defaultEvents int
	maxEvents     int
}

// Option applies a configuration option to the Server.
type Option func(*options)

// WithEventLimits sets the default and maximum number of events /events
// returns.
func WithEventLimits(def, maxLimit int) Option {
	return func(o *options) {
		if def > 0 && maxLimit >= def {
			o.defaultEvents = def
			o.maxEvents = maxLimit
		}
	}
}
