package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrRevisionMismatch is returned when a conditional write loses a race:
	// the record changed since it was read, or it already exists on create.
	ErrRevisionMismatch = errors.New("record revision mismatch")

	// ErrLocked is returned when a plan lock could not be acquired in time.
	ErrLocked = errors.New("plan is locked by another request")
)
