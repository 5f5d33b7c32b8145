package person

import "errors"

// Sentinel errors for the person service layer.
var (
	ErrNotFound     = errors.New("person not found")
	ErrExists       = errors.New("person already exists for this email")
	ErrInvalidEmail = errors.New("invalid email address")
)
