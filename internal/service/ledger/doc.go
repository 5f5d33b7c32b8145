// Package ledger implements the idempotency ledger: the record of which
// external event keys have already been fully processed.
//
// Every deduplicated ingestion path consults the ledger before doing work
// and commits its result under the event key afterwards. The insert is
// insert-if-absent; a losing writer re-reads the winner's snapshot and
// returns that instead of its own. The ledger survives process restarts and
// horizontal scaling because it lives in Postgres, with Redis as an optional
// read-through cache in front.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports net/http
// or database/sql directly.
package ledger
