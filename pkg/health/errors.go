package health

import "errors"

var (
	// ErrCheckFailed is reported by Response.Err when one or more checks
	// failed.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout replaces a check's error when it ran past the
	// configured timeout.
	ErrCheckTimeout = errors.New("health: check timed out")
)
