package ledger

import "errors"

// Sentinel errors for the ledger service layer.
var (
	ErrNotFound = errors.New("idempotency record not found")
)
