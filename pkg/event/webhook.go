// Package event decodes inbound gateway webhooks and decides whether they
// carry a new, externally authored text message worth answering.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// UpsertEvent is the only webhook event type that carries new messages.
const UpsertEvent = "messages.upsert"

// ErrMalformedPayload is returned when the webhook body is not a JSON object.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Webhook is the inbound gateway payload. Every field is optional: absent
// fields stay nil instead of taking a zero value, so classification can tell
// "missing" apart from "false" or "".
type Webhook struct {
	Event *string `json:"event"`
	Data  *Data   `json:"data"`
}

// Data is the message envelope inside a webhook.
type Data struct {
	Key      *MessageKey `json:"key"`
	PushName *string     `json:"pushName"`
	Message  *Message    `json:"message"`
}

// MessageKey identifies the conversation and the author.
type MessageKey struct {
	RemoteJID *string `json:"remoteJid"`
	FromMe    *Flag   `json:"fromMe"`
}

// Flag is a boolean that only a literal JSON true sets. Any other value,
// including "true" as a string, decodes as false instead of failing.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = Flag(bytes.Equal(bytes.TrimSpace(b), []byte("true")))
	return nil
}

// Message holds the message bodies the gateway may send.
type Message struct {
	Conversation        *string              `json:"conversation"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage"`
}

// ExtendedTextMessage is the body used for replies, link previews and
// forwarded text.
type ExtendedTextMessage struct {
	Text *string `json:"text"`
}

// Decode parses a webhook body.
func Decode(body []byte) (*Webhook, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedPayload)
	}

	var env struct {
		Event json.RawMessage `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	// An event tag that is not a string is kept as absent, which classifies
	// as a non-upsert event.
	w := &Webhook{}
	var tag string
	if len(env.Event) > 0 && string(env.Event) != "null" && json.Unmarshal(env.Event, &tag) == nil {
		w.Event = &tag
	}

	// Other event types are ignored whatever their data looks like.
	if w.EventType() != UpsertEvent || len(env.Data) == 0 || string(env.Data) == "null" {
		return w, nil
	}

	var data Data
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrMalformedPayload, err)
	}
	w.Data = &data

	return w, nil
}

// EventType returns the event tag, or "" when absent.
func (w *Webhook) EventType() string {
	if w == nil || w.Event == nil {
		return ""
	}
	return *w.Event
}

// FromSelf reports whether the gateway marked the message as sent by the
// bot's own account. An absent flag is not self-authored.
func (w *Webhook) FromSelf() bool {
	if w == nil || w.Data == nil || w.Data.Key == nil || w.Data.Key.FromMe == nil {
		return false
	}
	return bool(*w.Data.Key.FromMe)
}

// SenderKey returns the conversation identifier, or "" when absent.
func (w *Webhook) SenderKey() string {
	if w == nil || w.Data == nil || w.Data.Key == nil || w.Data.Key.RemoteJID == nil {
		return ""
	}
	return *w.Data.Key.RemoteJID
}

// Text returns the plain conversation body, or "" when absent. Only the
// plain "conversation" field counts as text; extended text messages are not
// answered.
func (w *Webhook) Text() string {
	if w == nil || w.Data == nil || w.Data.Message == nil || w.Data.Message.Conversation == nil {
		return ""
	}
	return *w.Data.Message.Conversation
}

// SenderName returns the display name the gateway attached, if any.
func (w *Webhook) SenderName() string {
	if w == nil || w.Data == nil || w.Data.PushName == nil {
		return ""
	}
	return *w.Data.PushName
}
