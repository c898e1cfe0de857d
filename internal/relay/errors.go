package relay

import "errors"

// Sentinel errors returned in PublishResult.Err.
var (
	ErrEmptyUsername = errors.New("username is required")
	ErrDisconnected  = errors.New("not connected to the broker")
)
