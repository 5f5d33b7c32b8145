package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-ingest/internal/domain"
)

// Namespace for deterministic IDs. Deriving activity and deal IDs from the
// event key means a retried or concurrently duplicated event re-creates the
// same rows, which upserts collapse into one.
var nsEvents = uuid.MustParse("6f1c1d52-9a57-4a33-8f2e-cc7d3a8b9f01")

// EmailEventKey derives the external event key for a BCC'd email. Two
// deliveries of the same message produce the same key.
func EmailEventKey(from, to, subject string, sentAt time.Time, bccAddress string) string {
	return hashFields(
		domain.NormalizeEmail(from),
		domain.NormalizeEmail(to),
		strings.TrimSpace(subject),
		sentAt.UTC().Format(time.RFC3339),
		domain.NormalizeEmail(bccAddress),
	)
}

// FormEventKey derives the external event key for a form submission. The
// key embeds the company so two tenants receiving the same submission never
// collide in the ledger (the email key gets this for free via the BCC
// address). The nonce is the form system's submission ID; without one, the
// caller falls back to the submission timestamp.
func FormEventKey(companyID, email, source, nonce string) string {
	return hashFields(companyID, domain.NormalizeEmail(email), strings.TrimSpace(source), strings.TrimSpace(nonce))
}

// ActivityID derives the deterministic activity ID for an event key.
func ActivityID(channel domain.Channel, eventKey string) string {
	return uuid.NewSHA1(nsEvents, []byte("activity:"+string(channel)+":"+eventKey)).String()
}

// DealID derives the deterministic deal ID for an event key.
func DealID(channel domain.Channel, eventKey string) string {
	return uuid.NewSHA1(nsEvents, []byte("deal:"+string(channel)+":"+eventKey)).String()
}

func hashFields(fields ...string) string {
	h := sha256.New()
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}
