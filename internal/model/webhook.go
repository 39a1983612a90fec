package model

import (
	"encoding/json"
	"time"
)

// Known webhook event types produced by normalization. Unrecognized
// change fields are preserved under EventTypeUnknown rather than
// dropped, so new upstream fields survive a broker that has not yet
// learned about them.
const (
	EventTypeComment  = "comment"
	EventTypeFeed     = "feed"
	EventTypeMention  = "mention"
	EventTypeReaction = "reaction"
	EventTypeMessage  = "message"
	EventTypeUnknown  = "unknown"
)

// WebhookEvent is the flat record persisted for every normalized
// change or message in a verified delivery. Events are immutable once
// written and age out of the store on a fixed retention.
//
// Fields:
//
//	EventID    – synthesized id; identical repeats overwrite each other.
//	Type       – one of the EventType constants.
//	AccountID  – the upstream entry id the event belongs to.
//	Timestamp  – the upstream delivery timestamp (unix seconds).
//	Payload    – the normalized, type-specific fields.
//	ReceivedAt – when this broker accepted the delivery.
type WebhookEvent struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	AccountID  string          `json:"account_id"`
	Timestamp  int64           `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// RateWindowEntry is the per-client record backing the sliding window
// limiter. Timestamps hold the admit times (unix milliseconds) still
// inside the active window; each access prunes aged entries before
// appending.
type RateWindowEntry struct {
	ClientID   string  `json:"client_id"`
	Timestamps []int64 `json:"timestamps"`
}
