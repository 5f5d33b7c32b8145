// Package ingest is the single entry point for inbound CRM events.
//
// Every channel (BCC'd email, form submission, tracking open, tracking
// click) funnels through the Gateway, which owns the processing pipeline:
// validate, deduplicate, match the person, record the activity, evaluate
// deal auto-creation, and commit the idempotency key last. All IDs derived
// along the way are deterministic functions of the event key, so a retry or
// a concurrent duplicate re-derives the same rows instead of conflicting.
package ingest
