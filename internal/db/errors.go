package db

import "errors"

// Common database errors
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a guarded write finds the record in a
	// different state than the caller expected.
	ErrConflict = errors.New("record in conflicting state")
)
