package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vendra/utils"

	"github.com/go-redis/redis/v8"
)

// IdempotencyStore remembers which handle an idempotency key produced so
// a retried authorize returns the original charge instead of a new one.
type IdempotencyStore interface {
	// Get returns the handle stored under the key, if any.
	Get(ctx context.Context, key string) (*Handle, bool, error)
	// PutIfAbsent stores the handle under the key unless one exists.
	// Returns the handle now bound to the key and whether ours won.
	PutIfAbsent(ctx context.Context, key string, handle *Handle) (*Handle, bool, error)
}

// RedisIdempotencyStore implements IdempotencyStore on Redis.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a store backed by the given client.
func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: utils.IdempotencyTTL}
}

func (s *RedisIdempotencyStore) key(k string) string {
	return utils.IdempotencyPrefix + k
}

// Get returns the handle stored under the key.
func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*Handle, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	var h Handle
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return nil, false, fmt.Errorf("idempotency entry corrupt: %w", err)
	}
	return &h, true, nil
}

// PutIfAbsent stores the handle under the key unless one already exists.
func (s *RedisIdempotencyStore) PutIfAbsent(ctx context.Context, key string, handle *Handle) (*Handle, bool, error) {
	raw, err := json.Marshal(handle)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal handle: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(key), raw, s.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("idempotency store failed: %w", err)
	}
	if ok {
		return handle, true, nil
	}
	existing, _, err := s.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
