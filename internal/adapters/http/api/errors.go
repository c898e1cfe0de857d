package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidLimit = errors.New("limit must be a positive integer")
	ErrStore        = errors.New("could not read scores")
)

// Plain-text bodies of the command endpoints.
const (
	msgNotConnected   = "Not connected to the broker"
	msgPublishFailed  = "Error while publishing"
	msgMissingUser    = "Username is required"
	msgInvalidRequest = "Invalid request body"
)
