// Package simulator plays the part of many Simon devices: it publishes score
// messages for generated players and checks that the relay persisted them.
package simulator

import (
	"errors"
	"time"
)

// Sentinel errors reported by Run.
var (
	ErrInvalidConfig = errors.New("invalid simulator config")
	ErrUnhealthy     = errors.New("relay health check failed")
	ErrVerifyFailed  = errors.New("persisted score count did not grow as expected")
)

// Config holds one simulator run.
type Config struct {
	Topic    string
	Events   int
	Players  int
	Workers  int
	MaxScore int
	// Seed makes generated players and scores reproducible; zero is random.
	Seed uint64

	// BaseURL of the relay HTTP API. Required when Start or Verify is set.
	BaseURL string
	// Start posts /start for every player before publishing.
	Start bool
	// Verify waits for the relay to persist every published score.
	Verify     bool
	VerifyWait time.Duration
	Timeout    time.Duration
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		Topic:      "simon/score",
		Events:     100,
		Players:    10,
		Workers:    4,
		MaxScore:   50,
		BaseURL:    "http://localhost:3003",
		VerifyWait: 30 * time.Second,
		Timeout:    10 * time.Second,
	}
}

func (c *Config) validate() error {
	switch {
	case c.Topic == "":
		return errors.Join(ErrInvalidConfig, errors.New("topic must not be empty"))
	case c.Events < 1:
		return errors.Join(ErrInvalidConfig, errors.New("events must be positive"))
	case c.Players < 1:
		return errors.Join(ErrInvalidConfig, errors.New("players must be positive"))
	case c.MaxScore < 0:
		return errors.Join(ErrInvalidConfig, errors.New("max score must not be negative"))
	case (c.Start || c.Verify) && c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("base url is required to start sessions or verify"))
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.VerifyWait <= 0 {
		c.VerifyWait = DefaultConfig().VerifyWait
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultConfig().Timeout
	}
	return nil
}

// Stats summarizes a run.
type Stats struct {
	Players         int
	SessionsStarted int
	SessionsFailed  int
	Published       int
	PublishFailed   int
	StoredBefore    int64
	StoredAfter     int64
	Verified        bool
	// Newest is the username on the most recent persisted record.
	Newest   string
	Duration time.Duration
}
