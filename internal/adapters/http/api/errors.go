package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNoPlayer     = errors.New("no player on request context")
	ErrMissingField = errors.New("required field missing")
)
