package service

import "errors"

// Submission errors returned at the service boundary.
var (
	ErrNotStarted          = errors.New("service not started")
	ErrInvalidTolerance    = errors.New("tolerance must be non-negative")
	ErrTooManyPoints       = errors.New("trajectory exceeds max points")
	ErrUnorderedTimestamps = errors.New("trajectory timestamps are not ordered")
	ErrMissingTrajectoryID = errors.New("trajectory id is required")
	ErrBackpressure        = errors.New("job queue is full")
)
