// Package activity records immutable timeline entries for people.
//
// Activities are append-only: once recorded they are never updated or
// deleted. Each activity carries a deterministic ID derived by the caller
// from the originating event, so recording the same event twice lands on
// the same row and the second write is a no-op.
package activity
