package api

import (
	"time"

	"github.com/okian/simon-relay/pkg/logger"
)

type options struct {
	pollInterval time.Duration
	maxLimit     int
	log          logger.Logger
}

// Option configures a Server.
type Option func(*options)

// WithPollInterval sets how often the status page refreshes itself.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithMaxScoresLimit caps the limit accepted by GET /scores.
func WithMaxScoresLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// WithLogger sets the logger used by the handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
