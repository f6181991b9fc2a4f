package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nabd-ai/vertex-backend/pkg/instance"
)

// Lock guards one job run across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Locker hands out a lock per job. ttl bounds how long a crashed holder can
// block the next run.
type Locker interface {
	For(job string, ttl time.Duration) Lock
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// RedisLocker namespaces job locks under one prefix, usually the environment.
type RedisLocker struct {
	client redisStore
	prefix string
}

func NewRedisLocker(client redisStore, prefix string) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if prefix == "" {
		prefix = "local"
	}
	return &RedisLocker{client: client, prefix: prefix}, nil
}

func (l *RedisLocker) For(job string, ttl time.Duration) Lock {
	return &redisLock{
		client: l.client,
		key:    l.client.LockKey("cron:" + l.prefix + ":" + job),
		ttl:    ttl,
	}
}

type redisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

func (l *redisLock) Acquire(ctx context.Context) (bool, error) {
	owner := instance.ID() + "/" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release deletes the key only while this run still owns it; an expired lock
// may already belong to another replica.
func (l *redisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	defer func() { l.owner = "" }()

	current, err := l.client.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read %s owner: %w", l.key, err)
	case current != l.owner:
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
