package event

// Reasons a webhook is ignored.
const (
	ReasonNotUpsert     = "non-upsert event"
	ReasonSelfAuthored  = "self-authored"
	ReasonNonText       = "non-text content"
	ReasonMissingSender = "missing sender key"
)

// Result is the outcome of classifying a webhook. Exactly one of the two
// shapes is meaningful: Actionable with SenderKey and Text, or ignored with
// Reason.
type Result struct {
	Actionable bool
	SenderKey  string
	Text       string
	Reason     string
}

// Ignored builds a non-actionable result.
func Ignored(reason string) Result {
	return Result{Reason: reason}
}

// Actionable builds a result that must be answered.
func Actionable(senderKey, text string) Result {
	return Result{Actionable: true, SenderKey: senderKey, Text: text}
}

// Classify applies the rules in order and stops at the first that matches:
// wrong event type, self-authored, no text, no sender.
func Classify(w *Webhook) Result {
	if w.EventType() != UpsertEvent {
		return Ignored(ReasonNotUpsert)
	}

	if w.FromSelf() {
		return Ignored(ReasonSelfAuthored)
	}

	text := w.Text()
	if text == "" {
		return Ignored(ReasonNonText)
	}

	key := w.SenderKey()
	if key == "" {
		return Ignored(ReasonMissingSender)
	}

	return Actionable(key, text)
}
