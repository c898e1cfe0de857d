package broker

import "errors"

// Sentinel errors for broker operations.
var (
	ErrNotConnected   = errors.New("not connected to the broker")
	ErrUnknownDriver  = errors.New("unknown broker driver")
	ErrConnectTimeout = errors.New("broker connect timed out")
	ErrStopped        = errors.New("connection manager stopped")
)
