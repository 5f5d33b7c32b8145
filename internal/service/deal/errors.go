package deal

import "errors"

var (
	// ErrNotFound indicates no deal matched the lookup.
	ErrNotFound = errors.New("deal not found")

	// ErrOpenDealExists indicates the person already has an open deal. Storage
	// returns it when an insert loses the one-open-deal race.
	ErrOpenDealExists = errors.New("person already has an open deal")
)
