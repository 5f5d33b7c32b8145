// Package person implements contact resolution: mapping an email address to
// an existing Person record or creating one on first sighting.
//
// Matching is exact on the normalized address (lowercased, trimmed). The
// (company_id, email) uniqueness constraint in storage is the sole source of
// truth for identity; when two instances race to create the same person, the
// loser re-reads and returns the winner's row. There is no fuzzy matching.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports net/http
// or database/sql directly.
package person
