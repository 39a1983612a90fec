// Package service holds the small glue services around the credential
// core. The event publisher fans accepted webhook events out to the
// message broker; failures are logged and returned so the ingest path
// can ignore them without interrupting the request.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/fanoutlabs/graph-broker/internal/model"
	"github.com/fanoutlabs/graph-broker/internal/queue"
)

// EventPublisher publishes webhook events to the webhook.events
// queue. A connection is dialed per publish; volume on this queue is
// low and the broker may come and go independently of this process.
type EventPublisher struct {
	URL string
}

// NewEventPublisher builds a publisher for the given AMQP URL.
func NewEventPublisher(url string) *EventPublisher {
	return &EventPublisher{URL: url}
}

// Publish sends one event to the queue. Messages are persistent and a
// best effort: the caller logs and ignores the returned error.
func (p *EventPublisher) Publish(ctx context.Context, ev model.WebhookEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.EventQueueName, true, false, false, false, nil); err != nil {
		log.Warn().Err(err).Msg("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(queue.EventMessage{
		EventID:    ev.EventID,
		Type:       ev.Type,
		AccountID:  ev.AccountID,
		Timestamp:  ev.Timestamp,
		Payload:    string(ev.Payload),
		ReceivedAt: ev.ReceivedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = ch.PublishWithContext(pubCtx, "", queue.EventQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq: publish failed")
	}
	return err
}
