package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/relay/pkg/storage"
)

// ErrStoreUnavailable is returned when the backing store cannot be reached
// or written. It is a hard failure for the request, unlike a single failed
// read which degrades to an empty session.
var ErrStoreUnavailable = errors.New("session store unavailable")

// DefaultTimeout bounds each store round trip when none is configured.
const DefaultTimeout = 5 * time.Second

// StoreOptions configures a Store.
type StoreOptions struct {
	// KeyPrefix is prepended to conversation keys to form store keys.
	KeyPrefix string

	// Timeout bounds each store round trip.
	Timeout time.Duration
}

// Store loads and persists sessions against a storage.Driver.
type Store struct {
	driver  storage.Driver
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewStore creates a Store.
func NewStore(driver storage.Driver, opts StoreOptions, logger *zap.Logger) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Store{
		driver:  driver,
		prefix:  opts.KeyPrefix,
		timeout: opts.Timeout,
		logger:  logger,
	}
}

// StoreKey returns the store key for a conversation key.
func (s *Store) StoreKey(key string) string {
	return s.prefix + key
}

// Ping checks the backing store.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.driver.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Load returns the session stored under key.
//
// An unreachable store is an ErrStoreUnavailable. A key with no value yields
// an empty session. A failed read or an undecodable value on a live store
// yields an empty session marked Degraded, and a nil error: the request goes
// on without history.
func (s *Store) Load(ctx context.Context, key string) (*Session, error) {
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	value, err := s.driver.Get(ctx, s.StoreKey(key))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.logger.Debug("no stored session", zap.String("key", key))
		return New(key), nil
	case err != nil:
		s.logger.Warn("session read failed, continuing without history",
			zap.String("key", key),
			zap.Error(err),
		)
		return s.degraded(key), nil
	}

	turns, err := Decode(value)
	if err != nil {
		s.logger.Warn("stored session is unreadable, continuing without history",
			zap.String("key", key),
			zap.Int("value_size", len(value)),
			zap.Error(err),
		)
		return s.degraded(key), nil
	}

	s.logger.Debug("loaded session",
		zap.String("key", key),
		zap.Int("turns", len(turns)),
	)

	return &Session{Key: key, Turns: turns}, nil
}

// Persist overwrites the value stored under key with the session's turns.
// A failed write is an ErrStoreUnavailable.
func (s *Store) Persist(ctx context.Context, key string, sess *Session) error {
	value, err := Encode(sess.Turns)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.driver.Set(ctx, s.StoreKey(key), value); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.Debug("persisted session",
		zap.String("key", key),
		zap.Int("turns", len(sess.Turns)),
	)

	return nil
}

// Keys returns the conversation keys that have a stored session.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	keys, err := s.driver.Keys(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, s.prefix)
	}
	return keys, nil
}

func (s *Store) degraded(key string) *Session {
	sess := New(key)
	sess.Degraded = true
	return sess
}
