package domain

import "time"

// ActivityType enumerates the kinds of timeline entries the core records.
type ActivityType string

const (
	ActivityEmailReceived ActivityType = "email_received"
	ActivityEmailSent     ActivityType = "email_sent"
	ActivityMeetingBooked ActivityType = "meeting_booked"
	ActivityFormSubmitted ActivityType = "form_submitted"
)

// Valid reports whether t is one of the known activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityEmailReceived, ActivityEmailSent, ActivityMeetingBooked, ActivityFormSubmitted:
		return true
	}
	return false
}

// Activity is an immutable timeline record linked to a Person. Activities are
// created exactly once per underlying external event and never mutated or
// deleted. Seq is assigned by storage and orders a person's timeline.
type Activity struct {
	ID         string       `json:"id" db:"id"`
	CompanyID  string       `json:"company_id" db:"company_id"`
	PersonID   string       `json:"person_id" db:"person_id"`
	Type       ActivityType `json:"type" db:"type"`
	UserID     *string      `json:"user_id,omitempty" db:"user_id"`
	Summary    string       `json:"summary" db:"summary"`
	Payload    string       `json:"payload,omitempty" db:"payload"`
	OccurredAt time.Time    `json:"occurred_at" db:"occurred_at"`
	Seq        int64        `json:"-" db:"seq"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}
