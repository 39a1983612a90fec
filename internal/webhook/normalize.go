package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fanoutlabs/graph-broker/internal/model"
)

// Delivery is the envelope of one inbound POST. An entry carries zero
// or more typed changes and/or direct-message events.
type Delivery struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one account's batch inside a delivery.
type Entry struct {
	ID        string            `json:"id"`
	Time      int64             `json:"time"`
	Changes   []Change          `json:"changes,omitempty"`
	Messaging []json.RawMessage `json:"messaging,omitempty"`
}

// Change is a typed mutation; Field discriminates the Value shape.
type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// Flat payload shapes written into model.WebhookEvent.Payload, one
// per known field. Unknown fields keep their raw value under the
// catch-all so nothing is dropped on the floor.

type commentPayload struct {
	CommentID  string `json:"comment_id"`
	PostID     string `json:"post_id"`
	ParentID   string `json:"parent_id,omitempty"`
	SenderID   string `json:"sender_id,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
	Message    string `json:"message,omitempty"`
	Verb       string `json:"verb,omitempty"`
}

type feedPayload struct {
	PostID   string `json:"post_id"`
	SenderID string `json:"sender_id,omitempty"`
	Item     string `json:"item,omitempty"`
	Verb     string `json:"verb,omitempty"`
	Message  string `json:"message,omitempty"`
}

type mentionPayload struct {
	CommentID string `json:"comment_id,omitempty"`
	MediaID   string `json:"media_id,omitempty"`
	PostID    string `json:"post_id,omitempty"`
}

type reactionPayload struct {
	PostID       string `json:"post_id"`
	SenderID     string `json:"sender_id,omitempty"`
	ReactionType string `json:"reaction_type,omitempty"`
	Verb         string `json:"verb,omitempty"`
}

type messagePayload struct {
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text,omitempty"`
	MessageID   string `json:"message_id,omitempty"`
}

// Normalize flattens a delivery into event records. Malformed pieces
// are skipped individually; the caller has already passed signature
// verification and will acknowledge the delivery regardless, so the
// goal is to salvage every usable event rather than reject the batch.
func Normalize(d Delivery, receivedAt time.Time) []model.WebhookEvent {
	var events []model.WebhookEvent
	for _, entry := range d.Entry {
		for _, ch := range entry.Changes {
			if ev, ok := normalizeChange(entry, ch, receivedAt); ok {
				events = append(events, ev)
			}
		}
		for _, raw := range entry.Messaging {
			if ev, ok := normalizeMessage(entry, raw, receivedAt); ok {
				events = append(events, ev)
			}
		}
	}
	return events
}

func normalizeChange(entry Entry, ch Change, receivedAt time.Time) (model.WebhookEvent, bool) {
	var (
		eventType     string
		payload       any
		discriminator string
	)
	switch ch.Field {
	case "feed":
		// The feed field multiplexes comments, posts and reactions;
		// the item discriminator inside the value tells them apart.
		var v struct {
			Item         string `json:"item"`
			CommentID    string `json:"comment_id"`
			PostID       string `json:"post_id"`
			ParentID     string `json:"parent_id"`
			Message      string `json:"message"`
			Verb         string `json:"verb"`
			ReactionType string `json:"reaction_type"`
			From         struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"from"`
		}
		if err := json.Unmarshal(ch.Value, &v); err != nil {
			return model.WebhookEvent{}, false
		}
		switch v.Item {
		case "comment":
			eventType = model.EventTypeComment
			payload = commentPayload{
				CommentID: v.CommentID, PostID: v.PostID, ParentID: v.ParentID,
				SenderID: v.From.ID, SenderName: v.From.Name,
				Message: v.Message, Verb: v.Verb,
			}
			discriminator = firstNonEmpty(v.CommentID, v.PostID, v.From.ID)
		case "reaction":
			eventType = model.EventTypeReaction
			payload = reactionPayload{
				PostID: v.PostID, SenderID: v.From.ID,
				ReactionType: v.ReactionType, Verb: v.Verb,
			}
			discriminator = firstNonEmpty(v.PostID, v.From.ID)
		default:
			eventType = model.EventTypeFeed
			payload = feedPayload{
				PostID: v.PostID, SenderID: v.From.ID,
				Item: v.Item, Verb: v.Verb, Message: v.Message,
			}
			discriminator = firstNonEmpty(v.PostID, v.From.ID)
		}
	case "mentions", "mention":
		var v mentionPayload
		if err := json.Unmarshal(ch.Value, &v); err != nil {
			return model.WebhookEvent{}, false
		}
		eventType = model.EventTypeMention
		payload = v
		discriminator = firstNonEmpty(v.CommentID, v.MediaID, v.PostID)
	default:
		// Forward-compatibility: keep the raw value for fields this
		// broker has not learned yet.
		eventType = model.EventTypeUnknown
		payload = struct {
			Field string          `json:"field"`
			Value json.RawMessage `json:"value"`
		}{ch.Field, ch.Value}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return model.WebhookEvent{}, false
	}
	return model.WebhookEvent{
		EventID:    EventID(eventType, entry.Time, discriminator),
		Type:       eventType,
		AccountID:  entry.ID,
		Timestamp:  entry.Time,
		Payload:    raw,
		ReceivedAt: receivedAt,
	}, true
}

func normalizeMessage(entry Entry, raw json.RawMessage, receivedAt time.Time) (model.WebhookEvent, bool) {
	var v struct {
		Sender struct {
			ID string `json:"id"`
		} `json:"sender"`
		Recipient struct {
			ID string `json:"id"`
		} `json:"recipient"`
		Timestamp int64 `json:"timestamp"`
		Message   struct {
			MID  string `json:"mid"`
			Text string `json:"text"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return model.WebhookEvent{}, false
	}
	payload, err := json.Marshal(messagePayload{
		SenderID: v.Sender.ID, RecipientID: v.Recipient.ID,
		Text: v.Message.Text, MessageID: v.Message.MID,
	})
	if err != nil {
		return model.WebhookEvent{}, false
	}
	ts := entry.Time
	if v.Timestamp > 0 {
		ts = v.Timestamp
	}
	discriminator := firstNonEmpty(v.Message.MID, v.Sender.ID)
	return model.WebhookEvent{
		EventID:    EventID(model.EventTypeMessage, ts, discriminator),
		Type:       model.EventTypeMessage,
		AccountID:  entry.ID,
		Timestamp:  ts,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}, true
}

// EventID synthesizes the dedupe key for an event: type, delivery
// timestamp and the best available discriminator. Identical repeats
// with the same discriminator collide and overwrite, which is the
// accepted idempotence model; an event with no discriminator gets a
// random suffix and cannot dedupe.
func EventID(eventType string, ts int64, discriminator string) string {
	if discriminator == "" {
		discriminator = uuid.NewString()[:8]
	}
	return fmt.Sprintf("%s_%d_%s", eventType, ts, discriminator)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
