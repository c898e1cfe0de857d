package broker

import (
	"time"

	"github.com/okian/simon-relay/pkg/logger"
)

// Option configures a Manager.
type Option func(*Manager)

// WithReconnectPolicy replaces the default reconnect policy.
func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(m *Manager) {
		m.policy = p
	}
}

// WithLogger sets the manager logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock overrides time.Now for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
