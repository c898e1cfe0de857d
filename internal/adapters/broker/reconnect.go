package broker

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Reconnect strategies.
const (
	StrategyFixed   = "fixed"
	StrategyBackoff = "backoff"
)

// ReconnectPolicy decides how long to wait between dial attempts and when to
// give up. MaxAttempts of zero retries forever.
type ReconnectPolicy struct {
	Strategy    string
	Delay       time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultReconnectPolicy retries every second, forever.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Strategy: StrategyFixed,
		Delay:    time.Second,
		MaxDelay: 30 * time.Second,
	}
}

// NewBackOff returns a fresh schedule for the policy. backoff.Stop from
// NextBackOff means attempts are exhausted.
func (p ReconnectPolicy) NewBackOff() backoff.BackOff {
	delay := p.Delay
	if delay <= 0 {
		delay = time.Second
	}

	var b backoff.BackOff
	switch p.Strategy {
	case StrategyBackoff:
		e := backoff.NewExponentialBackOff()
		e.InitialInterval = delay
		if p.MaxDelay > 0 {
			e.MaxInterval = p.MaxDelay
		}
		e.MaxElapsedTime = 0
		e.Reset()
		b = e
	default:
		b = backoff.NewConstantBackOff(delay)
	}

	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts))
	}
	return b
}
