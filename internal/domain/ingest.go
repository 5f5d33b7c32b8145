package domain

import "time"

// Channel identifies the inbound path an external event arrived on.
type Channel string

const (
	ChannelBCCEmail       Channel = "bcc_email"
	ChannelFormSubmission Channel = "form_submission"
	ChannelTrackingOpen   Channel = "tracking_open"
	ChannelTrackingClick  Channel = "tracking_click"
)

// Valid reports whether c is a known ingestion channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelBCCEmail, ChannelFormSubmission, ChannelTrackingOpen, ChannelTrackingClick:
		return true
	}
	return false
}

// Deduplicated reports whether events on this channel are collapsed by
// external event key. Tracking channels are deliberately not deduplicated:
// every physical delivery is a meaningful engagement signal.
func (c Channel) Deduplicated() bool {
	return c == ChannelBCCEmail || c == ChannelFormSubmission
}

// IdempotencyRecord is the stored outcome of the first successful processing
// of an external event key. Retries of the same key return the snapshot
// instead of redoing work.
type IdempotencyRecord struct {
	Channel   Channel   `json:"channel" db:"channel"`
	EventKey  string    `json:"event_key" db:"event_key"`
	Result    string    `json:"result" db:"result"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Company is the minimal read model of the externally managed company record:
// only the fields the ingestion core needs to route inbound mail.
type Company struct {
	ID      string `json:"id" db:"id"`
	BCCSlug string `json:"bcc_slug" db:"bcc_slug"`
}
