// Package idempotency remembers which side effects a consumer has already
// performed, so a redelivered outbox row or a replayed Telegram update runs
// its effect once.
package idempotency

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL applies when the configured retention is zero.
const DefaultTTL = 24 * time.Hour

// Store is the slice of the Redis client the guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

var (
	errNoConsumer = errors.New("idempotency: consumer is required")
	errNoID       = errors.New("idempotency: id is required")
)

type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency: store is required")
	}
	switch {
	case ttl < 0:
		return nil, errors.New("idempotency: ttl must not be negative")
	case ttl == 0:
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMark claims id for consumer. It reports true when an earlier call
// already holds the claim, in which case the caller skips its side effect.
func (m *Manager) CheckAndMark(ctx context.Context, consumer, id string) (bool, error) {
	key, err := m.key(consumer, id)
	if err != nil {
		return false, err
	}
	// The stored value is the claim time; only presence matters.
	claimed, err := m.store.SetNX(ctx, key, strconv.FormatInt(m.now().Unix(), 10), m.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Forget drops a claim so the side effect can be attempted again.
func (m *Manager) Forget(ctx context.Context, consumer, id string) error {
	key, err := m.key(consumer, id)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer, id string) (string, error) {
	consumer, id = strings.TrimSpace(consumer), strings.TrimSpace(id)
	if consumer == "" {
		return "", errNoConsumer
	}
	if id == "" {
		return "", errNoID
	}
	return m.store.IdempotencyKey("seen:"+consumer, id), nil
}
