package repository

import "errors"

var (
	// ErrNotFound is returned when a row is missing or not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrStaleVersion is returned when a card changed since it was read.
	ErrStaleVersion = errors.New("stale version")
)
