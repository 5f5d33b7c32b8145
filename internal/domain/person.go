package domain

import (
	"strings"
	"time"
)

// Person is a contact record scoped to a company. At most one Person exists
// per (company, normalized email); the ingestion core creates people on first
// sighting and never deletes them.
type Person struct {
	ID          string     `json:"id" db:"id"`
	CompanyID   string     `json:"company_id" db:"company_id"`
	Email       string     `json:"email" db:"email"`
	DisplayName string     `json:"display_name" db:"display_name"`
	OwnerUserID *string    `json:"owner_user_id,omitempty" db:"owner_user_id"`
	Source      string     `json:"source,omitempty" db:"source"`

	TotalOpens    int        `json:"total_opens" db:"total_opens"`
	TotalClicks   int        `json:"total_clicks" db:"total_clicks"`
	LastEngagedAt *time.Time `json:"last_engaged_at,omitempty" db:"last_engaged_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeEmail converts an email address to its canonical matching form:
// lowercased with surrounding whitespace removed. Matching is exact on the
// normalized form; there is no fuzzy matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address has the minimal shape local@domain.tld.
func ValidEmail(email string) bool {
	email = NormalizeEmail(email)
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}
	local, dom := email[:at], email[at+1:]
	if len(local) > 64 || dom == "" {
		return false
	}
	dot := strings.LastIndex(dom, ".")
	return dot > 0 && dot < len(dom)-1
}

// PersonHints carries optional attributes known at resolution time, used to
// seed a newly created Person. Empty fields fall back to defaults derived
// from the email address itself.
type PersonHints struct {
	FirstName string
	LastName  string
	Source    string
}

// DisplayName builds a display name from the hints, or from the local part of
// the address when no name is known.
func (h PersonHints) DisplayName(email string) string {
	name := strings.TrimSpace(strings.TrimSpace(h.FirstName) + " " + strings.TrimSpace(h.LastName))
	if name != "" {
		return name
	}
	local := NormalizeEmail(email)
	if at := strings.Index(local, "@"); at > 0 {
		local = local[:at]
	}
	return local
}
