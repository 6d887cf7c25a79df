package relay

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/relay/pkg/event"
	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/session"
)

// SessionStore loads and persists conversation history.
type SessionStore interface {
	Ping(ctx context.Context) error
	Load(ctx context.Context, key string) (*session.Session, error)
	Persist(ctx context.Context, key string, s *session.Session) error
}

// Composer builds the prompt for one request.
type Composer interface {
	Build(history *session.Session, userText string) []llm.Turn
}

// Inferer produces a reply for a prompt.
type Inferer interface {
	Call(ctx context.Context, turns []llm.Turn) (string, error)
}

// Dispatcher delivers a reply to a conversation.
type Dispatcher interface {
	Send(ctx context.Context, key, text string) error
}

// Manager is the conversation session manager. For every inbound webhook it
// classifies the event and, when actionable, runs
// load → compose → infer → append+persist → dispatch strictly in that order.
//
// Nothing conversational is held in the Manager between requests; all state
// lives in the SessionStore under the conversation key.
type Manager struct {
	store      SessionStore
	composer   Composer
	inferer    Inferer
	dispatcher Dispatcher
	locker     session.Locker
	metrics    *Metrics
	logger     *zap.Logger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLocker sets the per-key locker held across load and persist.
func WithLocker(l session.Locker) ManagerOption {
	return func(m *Manager) { m.locker = l }
}

// WithMetrics sets the counters the manager updates.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a Manager. Without WithLocker, requests for the same
// key are not serialized.
func NewManager(store SessionStore, composer Composer, inferer Inferer, dispatcher Dispatcher, log *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		composer:   composer,
		inferer:    inferer,
		dispatcher: dispatcher,
		locker:     session.NopLocker{},
		metrics:    &Metrics{},
		logger:     log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Metrics returns the manager's counters.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Handle processes one raw webhook body.
func (m *Manager) Handle(ctx context.Context, body []byte) Outcome {
	m.metrics.Received.Add(1)

	w, err := event.Decode(body)
	if err != nil {
		m.logger.Error("could not decode webhook",
			zap.Error(err),
			zap.String("body_preview", logger.Truncate(string(body), 200)),
		)
		m.metrics.Failed.Add(1)
		return internalError("", err)
	}

	res := event.Classify(w)
	if !res.Actionable {
		m.logger.Info("ignoring webhook",
			zap.String("event", w.EventType()),
			zap.String("reason", res.Reason),
		)
		m.metrics.Ignored.Add(1)
		return ignored(res.Reason)
	}

	m.logger.Info("message received",
		zap.String("key", res.SenderKey),
		zap.String("sender", w.SenderName()),
		zap.String("text_preview", logger.Truncate(res.Text, 100)),
	)

	return m.Converse(ctx, res.SenderKey, res.Text)
}

// Converse answers text for key and dispatches the reply. It is the
// actionable half of Handle, also used by the local console.
func (m *Manager) Converse(ctx context.Context, key, text string) Outcome {
	start := time.Now()

	reply, err := m.exchange(ctx, key, text)
	if err != nil {
		if errors.Is(err, session.ErrStoreUnavailable) {
			m.logger.Error("session store unavailable", zap.String("key", key), zap.Error(err))
			m.metrics.StoreUnavailable.Add(1)
			return storeUnavailable(key, err)
		}
		m.logger.Error("could not process message", zap.String("key", key), zap.Error(err))
		m.metrics.Failed.Add(1)
		return internalError(key, err)
	}

	// The session is already persisted: a failed delivery is logged and
	// counted but the webhook still reports success.
	dispatchErr := m.dispatcher.Send(ctx, key, reply)
	if dispatchErr != nil {
		m.logger.Warn("could not deliver reply",
			zap.String("key", key),
			zap.Error(dispatchErr),
		)
		m.metrics.DispatchFailed.Add(1)
	} else {
		m.logger.Info("reply sent",
			zap.String("key", key),
			zap.String("reply_preview", logger.Truncate(reply, 100)),
			zap.Duration("duration", time.Since(start)),
		)
	}

	m.metrics.Succeeded.Add(1)
	return succeeded(key, dispatchErr)
}

// exchange runs load → compose → infer → persist under the key lock and
// returns the reply. Nothing is written unless inference succeeded.
func (m *Manager) exchange(ctx context.Context, key, text string) (string, error) {
	unlock := m.locker.Lock(key)
	defer unlock()

	history, err := m.store.Load(ctx, key)
	if err != nil {
		return "", err
	}
	if history.Degraded {
		m.metrics.DegradedLoads.Add(1)
	}

	prompt := m.composer.Build(history, text)

	reply, err := m.inferer.Call(ctx, prompt)
	if err != nil {
		return "", err
	}

	next := session.Append(history, llm.UserTurn(text), llm.AssistantTurn(reply))
	if err := m.store.Persist(ctx, key, next); err != nil {
		return "", err
	}

	m.logger.Debug("session updated",
		zap.String("key", key),
		zap.Int("turns", next.Len()),
		zap.Bool("degraded", history.Degraded),
	)

	return reply, nil
}
