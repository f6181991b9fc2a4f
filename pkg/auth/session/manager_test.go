package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabd-ai/vertex-backend/pkg/config"
)

type memBackend struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemBackend() *memBackend {
	return &memBackend{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memBackend) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memBackend) GetDel(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	delete(m.values, key)
	return v, nil
}

func (m *memBackend) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memBackend) AccessSessionKey(accessID string) string { return "sess:" + accessID }

func newTestManager(t *testing.T) (*Manager, *memBackend) {
	t.Helper()
	backend := newMemBackend()
	m, err := NewManager(backend, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	require.NoError(t, err)
	return m, backend
}

func TestGenerateStoresDigestOnly(t *testing.T) {
	m, backend := newTestManager(t)
	token, err := m.Generate(context.Background(), "access-1")
	require.NoError(t, err)

	stored := backend.values["sess:access-1"]
	assert.NotEqual(t, token, stored)
	assert.Equal(t, digest(token), stored)
	assert.Equal(t, time.Hour, backend.ttls["sess:access-1"])

	_, err = m.Generate(context.Background(), " ")
	assert.Error(t, err)
}

func TestRotate(t *testing.T) {
	ctx := context.Background()
	m, backend := newTestManager(t)
	token, err := m.Generate(ctx, "access-1")
	require.NoError(t, err)

	_, _, err = m.Rotate(ctx, "access-1", "wrong")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Contains(t, backend.values, "sess:access-1", "a wrong token must not burn the session")

	newID, newToken, err := m.Rotate(ctx, "access-1", token)
	require.NoError(t, err)
	assert.NotEqual(t, "access-1", newID)
	assert.NotContains(t, backend.values, "sess:access-1")
	assert.Equal(t, digest(newToken), backend.values["sess:"+newID])

	_, _, err = m.Rotate(ctx, "access-1", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "old refresh token is single use")
}

func TestRotateConcurrentOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	token, err := m.Generate(ctx, "access-1")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := m.Rotate(ctx, "access-1", token); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRevokeAndHasSession(t *testing.T) {
	ctx := context.Background()
	m, backend := newTestManager(t)
	_, err := m.Generate(ctx, "access-9")
	require.NoError(t, err)

	live, err := m.HasSession(ctx, "access-9")
	require.NoError(t, err)
	assert.True(t, live)

	require.NoError(t, m.Revoke(ctx, "access-9"))
	live, err = m.HasSession(ctx, "access-9")
	require.NoError(t, err)
	assert.False(t, live)

	backend.getErr = errors.New("redis down")
	_, err = m.HasSession(ctx, "access-9")
	assert.EqualError(t, err, "redis down")
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(nil, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	assert.Error(t, err)
	_, err = NewManager(newMemBackend(), config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	assert.Error(t, err)
	_, err = NewManager(newMemBackend(), config.JWTConfig{ExpirationMinutes: 15})
	assert.Error(t, err)
}
