package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fanoutlabs/graph-broker/internal/model"
	"github.com/fanoutlabs/graph-broker/internal/store"
)

// eventRetention is how long accepted webhook events stay readable.
// Events are immutable once written and simply age out.
const eventRetention = 24 * time.Hour

// EventRepo persists normalized webhook events with bounded
// retention. Event ids double as idempotence keys: a repeated
// delivery that synthesizes the same id overwrites its predecessor,
// which is the intended best-effort dedupe.
type EventRepo struct {
	Store store.Store
}

// NewEventRepo builds the repo over the given store.
func NewEventRepo(s store.Store) *EventRepo {
	return &EventRepo{Store: s}
}

// Put writes one event under its id with the fixed retention TTL.
func (r *EventRepo) Put(ctx context.Context, ev model.WebhookEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.EventID, err)
	}
	return r.Store.Put(ctx, store.EventKey(ev.EventID), raw, eventRetention)
}

// Get returns a single stored event by id.
func (r *EventRepo) Get(ctx context.Context, eventID string) (model.WebhookEvent, error) {
	raw, err := r.Store.Get(ctx, store.EventKey(eventID))
	if err != nil {
		return model.WebhookEvent{}, err
	}
	var ev model.WebhookEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return model.WebhookEvent{}, fmt.Errorf("decode event %s: %w", eventID, err)
	}
	return ev, nil
}

// List returns up to limit events whose id begins with typePrefix
// (pass "" for all), newest first by received time. Individual
// entries that vanish between the key scan and the read are skipped;
// the store expires entries lazily, so that window is normal.
func (r *EventRepo) List(ctx context.Context, typePrefix string, limit int) ([]model.WebhookEvent, error) {
	keys, err := r.Store.List(ctx, store.KeyEventPrefix+typePrefix)
	if err != nil {
		return nil, err
	}
	events := make([]model.WebhookEvent, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, store.KeyEventPrefix)
		ev, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].ReceivedAt.After(events[j].ReceivedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
