package domain

import "time"

// DealStatus enumerates pipeline deal states. The ingestion core only ever
// creates deals in DealOpen; later transitions belong to pipeline management.
type DealStatus string

const (
	DealOpen DealStatus = "open"
	DealWon  DealStatus = "won"
	DealLost DealStatus = "lost"
)

// Deal is a pipeline entry opened for a person. The core auto-creates a deal
// only on first contact from a form submission; stage validity is owned by
// the external pipeline collaborator.
type Deal struct {
	ID         string     `json:"id" db:"id"`
	CompanyID  string     `json:"company_id" db:"company_id"`
	PersonID   string     `json:"person_id" db:"person_id"`
	PipelineID string     `json:"pipeline_id" db:"pipeline_id"`
	StageID    string     `json:"stage_id" db:"stage_id"`
	Title      string     `json:"title" db:"title"`
	Status     DealStatus `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}
