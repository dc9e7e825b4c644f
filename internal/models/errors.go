package models

import "errors"

var (
	// ErrInvalidQuery marks a search request the caller must fix (empty query, unknown mode, bad limit).
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("not found")
)
