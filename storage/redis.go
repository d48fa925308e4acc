package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps credentials in Redis, one string key per credential.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisOption customizes the Redis store.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix (default "credential:").
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *RedisStore) {
		r.prefix = prefix
	}
}

// WithRedisTTL expires stored credentials after ttl. Zero keeps them until deleted.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *RedisStore) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewRedisStore creates a Redis-backed credential store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	r := &RedisStore{
		client: client,
		prefix: "credential:",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, backendError(err, "redis", "redis get", map[string]any{"key": r.key(key)})
	}
	return val, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return backendError(err, "redis", "redis set", map[string]any{"key": r.key(key)})
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return backendError(err, "redis", "redis del", map[string]any{"key": r.key(key)})
	}
	return nil
}
