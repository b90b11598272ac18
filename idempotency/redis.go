package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	courier "github.com/squidi0n/fluxao-sub000"
)

const (
	redisKeyPrefix   = "idemp"
	redisResultInfix = "result"
)

// RedisManager performs the idempotency check-and-set atomically in Redis
// via SETNX, making execute-once semantics hold across process instances.
// Use it when more than one worker process can enqueue the same broadcast.
type RedisManager struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

// RedisOption configures a RedisManager.
type RedisOption func(*RedisManager)

// WithRedisLogger sets the logger for the manager.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(m *RedisManager) { m.logger = l }
}

// NewRedisManager creates a RedisManager. The namespace isolates keys of
// different services sharing one Redis instance.
func NewRedisManager(client *redis.Client, namespace string, ttl time.Duration, opts ...RedisOption) *RedisManager {
	m := &RedisManager{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *RedisManager) key(key string) string {
	return redisKeyPrefix + ":" + m.namespace + ":" + key
}

func (m *RedisManager) resultKey(key string) string {
	return redisKeyPrefix + ":" + m.namespace + ":" + redisResultInfix + ":" + key
}

// Execute runs fn exactly once per key within the TTL window, with the
// existence check and reservation performed as a single atomic SETNX.
//
// Cached results are stored as JSON; a cache hit with WithReturnCached
// returns the result as json.RawMessage.
func (m *RedisManager) Execute(ctx context.Context, key string, fn Fn, opts ...ExecuteOption) (any, error) {
	var eo executeOptions
	for _, opt := range opts {
		opt(&eo)
	}

	fresh, err := m.client.SetNX(ctx, m.key(key), "1", m.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("idempotency: redis setnx: %w", err)
	}
	if !fresh {
		m.logger.Debug("idempotent operation detected", slog.String("key", key))
		if eo.returnCached {
			raw, getErr := m.client.Get(ctx, m.resultKey(key)).Bytes()
			if getErr == nil {
				return json.RawMessage(raw), nil
			}
			if !errors.Is(getErr, redis.Nil) {
				return nil, fmt.Errorf("idempotency: redis get result: %w", getErr)
			}
		}
		return nil, fmt.Errorf("%w: %s", courier.ErrDuplicateOperation, key)
	}

	result, err := fn(ctx)
	if err != nil {
		// Failures are never cached; release the reservation so the
		// caller may retry immediately.
		if delErr := m.client.Del(ctx, m.key(key)).Err(); delErr != nil {
			m.logger.Warn("failed to release idempotency key after error",
				slog.String("key", key),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, err
	}

	if encoded, marshalErr := json.Marshal(result); marshalErr == nil {
		if setErr := m.client.Set(ctx, m.resultKey(key), encoded, m.ttl).Err(); setErr != nil {
			m.logger.Warn("failed to cache idempotency result",
				slog.String("key", key),
				slog.String("error", setErr.Error()),
			)
		}
	}
	return result, nil
}

// Has reports whether key is fresh. Expiry is handled by Redis TTLs, so
// no lazy eviction is needed.
func (m *RedisManager) Has(ctx context.Context, key string) bool {
	n, err := m.client.Exists(ctx, m.key(key)).Result()
	if err != nil {
		m.logger.Warn("idempotency existence check failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	return n > 0
}
