package tracker

import "errors"

var (
	// ErrUnknownToken indicates the token does not exist or has expired.
	ErrUnknownToken = errors.New("unknown tracking token")

	// ErrBadSignature indicates a click URL whose signature does not verify.
	ErrBadSignature = errors.New("invalid click signature")

	// ErrNoActivity indicates a mint request without an originating activity.
	ErrNoActivity = errors.New("tracking token requires an activity")
)
