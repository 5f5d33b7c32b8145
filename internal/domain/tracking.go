package domain

import "time"

// TrackingToken maps an opaque identifier to the outbound send it was minted
// for. One token per send; immutable once created. The token value itself is
// the primary key and must be unguessable.
type TrackingToken struct {
	Token      string    `json:"token" db:"token"`
	CompanyID  string    `json:"company_id" db:"company_id"`
	ActivityID string    `json:"activity_id" db:"activity_id"`
	Links      []string  `json:"links" db:"links"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// EngagementKind is the type of a single engagement signal.
type EngagementKind string

const (
	EngagementOpen  EngagementKind = "open"
	EngagementClick EngagementKind = "click"
)

// EngagementEvent is one observed open or click tied to a tracking token.
// Events are append-only and intentionally never deduplicated: ten opens are
// ten rows, because engagement frequency is the signal being measured.
type EngagementEvent struct {
	ID         string         `json:"id" db:"id"`
	Token      string         `json:"token" db:"token"`
	Kind       EngagementKind `json:"kind" db:"kind"`
	LinkURL    string         `json:"link_url,omitempty" db:"link_url"`
	IPAddress  string         `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  string         `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType string         `json:"device_type,omitempty" db:"device_type"`
	OccurredAt time.Time      `json:"occurred_at" db:"occurred_at"`
}
