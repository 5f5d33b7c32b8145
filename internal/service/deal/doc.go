// Package deal auto-creates pipeline deals for first-contact form
// submissions.
//
// At most one open deal exists per person. The storage layer enforces this
// with a partial unique constraint, so two concurrent creators race safely:
// the loser re-reads the winner's deal instead of failing.
package deal
