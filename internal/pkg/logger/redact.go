package logger

import (
	"regexp"
	"strings"
)

// RedactEmail masks an email address for safe logging.
// "jane.roe@example.com" → "ja***@example.com"
// Short local parts (≤2 chars) are fully masked: "jr@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Fields whose values are email addresses or free text that may embed them.
// Inbound payloads put addresses under several names (sender, recipient,
// bcc_address), so match by substring. Only keys known to carry addresses
// get the full mask; everything else relies on the regex fallback so that
// non-address values (ids, tokens) pass through untouched.
func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || strings.Contains(key, "sender") ||
		strings.Contains(key, "recipient") {
		return RedactEmail(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
