package relay

import (
	"time"

	"github.com/okian/simon-relay/pkg/logger"
)

// Option configures a Relay.
type Option func(*Relay)

// Topics names the broker topics the relay reads and writes.
type Topics struct {
	Start  string
	Score  string
	Legacy string
}

// DefaultTopics returns the stock topic names.
func DefaultTopics() Topics {
	return Topics{Start: "simon/start", Score: "simon/score", Legacy: "test/topic"}
}

// WithTopics overrides the topic names. Empty fields keep their defaults.
func WithTopics(t Topics) Option {
	return func(r *Relay) {
		if t.Start != "" {
			r.topics.Start = t.Start
		}
		if t.Score != "" {
			r.topics.Score = t.Score
		}
		if t.Legacy != "" {
			r.topics.Legacy = t.Legacy
		}
	}
}

// WithQoS sets the QoS used for outbound publishes.
func WithQoS(qos byte) Option {
	return func(r *Relay) {
		r.qos = qos
	}
}

// WithSink forwards every valid score to s for persistence. Without a sink
// scores are only logged.
func WithSink(s Sink) Option {
	return func(r *Relay) {
		r.sink = s
	}
}

// WithLegacy toggles decoding of the legacy numeric topic.
func WithLegacy(enabled bool) Option {
	return func(r *Relay) {
		r.legacy = enabled
	}
}

// WithLogger sets the relay logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides time.Now for receive timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}
