package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("trajectory not found")
	ErrInvalidLimit = errors.New("invalid list limit")
	ErrMissingDSN   = errors.New("database url is empty")
	ErrInvalidID    = errors.New("trajectory id must not be empty")
)
