package repository

import "errors"

// Sentinel errors surfaced by repositories so services can classify failures.
var (
	// ErrNotFound signals a lookup miss for any repository record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail signals a unique violation on the users email column.
	// The database constraint is the authority here; two concurrent
	// registrations can both pass the application-level check, but only one
	// insert commits.
	ErrDuplicateEmail = errors.New("email already registered")
)
