package domain

import "errors"

var (
	ErrNotACommand     = errors.New("text is not a command")
	ErrModelFailed     = errors.New("model call failed")
	ErrEmptyResponse   = errors.New("model returned an empty response")
	ErrCircuitOpen     = errors.New("model backend temporarily unavailable")
	ErrNotFound        = errors.New("entity not found")
	ErrLockNotAcquired = errors.New("could not acquire lock")
)
