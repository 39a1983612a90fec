package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/fanoutlabs/graph-broker/internal/config"
	"github.com/fanoutlabs/graph-broker/internal/repository"
	"github.com/fanoutlabs/graph-broker/internal/service"
	"github.com/fanoutlabs/graph-broker/internal/webhook"
)

// WebhookHandler bundles dependencies for the inbound webhook
// endpoints: the verification handshake and signed delivery ingest.
type WebhookHandler struct {
	Cfg       config.Config
	Events    *repository.EventRepo
	Publisher *service.EventPublisher // optional, may be nil
	Archive   *repository.ArchiveRepo // optional, may be nil
}

func NewWebhookHandler(cfg config.Config, events *repository.EventRepo,
	pub *service.EventPublisher, archive *repository.ArchiveRepo) *WebhookHandler {
	return &WebhookHandler{Cfg: cfg, Events: events, Publisher: pub, Archive: archive}
}

// Verify handles the unsigned subscription handshake: GET /webhook
// with hub.mode, hub.verify_token and hub.challenge. A matching token
// echoes the challenge back; anything else is a 403.
func (h *WebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")
	if webhook.VerifyHandshake(h.Cfg.WebhookVerifyToken, mode, token) {
		return c.String(http.StatusOK, challenge)
	}
	return c.String(http.StatusForbidden, "verification failed")
}

// Receive handles POST /webhook. The signature check runs over the
// exact raw body before any parsing; a mismatch is a hard 403. Once
// the signature has passed, every downstream failure still answers
// 200 to the sender; a malformed delivery is logged and dropped
// instead of triggering the upstream's unbounded retry storm.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.String(http.StatusForbidden, "unreadable body")
	}
	if !webhook.VerifySignature(h.Cfg.WebhookSecret, body, c.Request().Header.Get(webhook.SignatureHeader)) {
		return c.String(http.StatusForbidden, "invalid signature")
	}

	var delivery webhook.Delivery
	if err := json.Unmarshal(body, &delivery); err != nil {
		log.Error().Err(err).Msg("discarding unparseable verified delivery")
		return c.String(http.StatusOK, "EVENT_RECEIVED")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	events := webhook.Normalize(delivery, time.Now().UTC())
	for _, ev := range events {
		if err := h.Events.Put(ctx, ev); err != nil {
			log.Error().Err(err).Str("event", ev.EventID).Msg("persisting webhook event failed")
			continue
		}
		if h.Publisher != nil {
			if err := h.Publisher.Publish(ctx, ev); err != nil {
				log.Warn().Err(err).Str("event", ev.EventID).Msg("event fan-out failed")
			}
		}
		if h.Archive != nil {
			if err := h.Archive.InsertEvent(ctx, ev); err != nil {
				log.Warn().Err(err).Str("event", ev.EventID).Msg("event archive insert failed")
			}
		}
	}
	log.Info().Str("object", delivery.Object).Int("events", len(events)).Msg("webhook delivery accepted")
	return c.String(http.StatusOK, "EVENT_RECEIVED")
}
