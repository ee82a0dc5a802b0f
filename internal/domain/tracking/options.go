package tracking

import "github.com/okian/vigil/pkg/logger"

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithLogger sets a custom logger for the Manager.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
