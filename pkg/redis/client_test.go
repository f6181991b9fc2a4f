package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabd-ai/vertex-backend/pkg/config"
)

type memCommands struct {
	values   map[string]string
	counters map[string]int64
	ttls     map[string]time.Duration
	incrErr  error
}

func newMemCommands() *memCommands {
	return &memCommands{
		values:   map[string]string{},
		counters: map[string]int64{},
		ttls:     map[string]time.Duration{},
	}
}

func (m *memCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.values[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *memCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memCommands) GetDel(ctx context.Context, key string) *redis.StringCmd {
	cmd := m.Get(ctx, key)
	delete(m.values, key)
	return cmd
}

func (m *memCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := m.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.values[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *memCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	if m.incrErr != nil {
		return redis.NewIntResult(0, m.incrErr)
	}
	m.counters[key]++
	return redis.NewIntResult(m.counters[key], nil)
}

func (m *memCommands) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if _, ok := m.ttls[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			n++
		}
		delete(m.values, k)
	}
	return redis.NewIntResult(n, nil)
}

func newMemClient() (*Client, *memCommands) {
	mem := newMemCommands()
	return &Client{cmd: mem, keys: NewKeyspace("")}, mem
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	client, mem := newMemClient()

	for i := int64(1); i <= 2; i++ {
		ok, count, err := client.FixedWindowAllow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, count)
	}
	ok, count, err := client.FixedWindowAllow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 3, count)

	assert.Equal(t, map[string]time.Duration{"vx:rate_limit:login:ip:1.2.3.4": time.Minute}, mem.ttls)
}

func TestFixedWindowAllowErrors(t *testing.T) {
	ctx := context.Background()
	client, mem := newMemClient()

	_, _, err := client.FixedWindowAllow(ctx, "x", 1, 0)
	assert.Error(t, err)

	mem.incrErr = errors.New("down")
	_, _, err = client.FixedWindowAllow(ctx, "x", 1, time.Second)
	assert.ErrorContains(t, err, "down")

	var zero Client
	_, _, err = zero.FixedWindowAllow(ctx, "x", 1, time.Second)
	assert.ErrorIs(t, err, errNotConnected)
}

func TestGetDelConsumesOnce(t *testing.T) {
	ctx := context.Background()
	client, _ := newMemClient()

	key := client.PairingKey("tok")
	require.NoError(t, client.Set(ctx, key, "spec-1", time.Minute))

	got, err := client.GetDel(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "spec-1", got)

	_, err = client.GetDel(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestSetNXClaimsOnce(t *testing.T) {
	ctx := context.Background()
	client, _ := newMemClient()

	key := client.LockKey("cron:dev:invoice-expiry")
	first, err := client.SetNX(ctx, key, "a", time.Minute)
	require.NoError(t, err)
	second, err := client.SetNX(ctx, key, "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	owner, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "a", owner)

	require.NoError(t, client.Del(ctx))
	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestClientOptions(t *testing.T) {
	opts, err := clientOptions(config.RedisConfig{
		URL:         "redis://:secret@cache:6380/2",
		DB:          5,
		PoolSize:    20,
		DialTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB, "db from the url wins")
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 3*time.Second, opts.DialTimeout)

	opts, err = clientOptions(config.RedisConfig{Address: "localhost:6379", DB: 1})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)

	_, err = clientOptions(config.RedisConfig{})
	assert.Error(t, err)
	_, err = clientOptions(config.RedisConfig{URL: "http://nope"})
	assert.Error(t, err)
}
