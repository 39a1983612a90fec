// Package queue defines message payloads exchanged over the message
// broker and the background consumer that drains them.
package queue

// EventQueueName is the durable queue accepted webhook events are
// fanned out to.
const EventQueueName = "webhook.events"

// EventMessage is published for every webhook event the ingestor
// accepts. It mirrors the persisted record closely enough for
// downstream consumers to log, notify or feed analytics without
// touching the primary store.
type EventMessage struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"`
	AccountID  string `json:"account_id"`
	Timestamp  int64  `json:"timestamp"`
	Payload    string `json:"payload"`
	ReceivedAt string `json:"received_at"`
}
