package activity

import "errors"

var (
	// ErrNotFound indicates no activity exists with the given ID.
	ErrNotFound = errors.New("activity not found")

	// ErrInvalidPerson indicates the activity references a missing person.
	ErrInvalidPerson = errors.New("activity references unknown person")

	// ErrInvalidType indicates the activity type is not one of the known kinds.
	ErrInvalidType = errors.New("invalid activity type")
)
