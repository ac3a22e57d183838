package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultIdempotencyKeyPrefix namespaces processed-event markers in Redis.
const DefaultIdempotencyKeyPrefix = "bookstore:processed-event:"

// RedisIdempotencyStore records processed event IDs in Redis so that
// deduplication survives restarts and is shared by every consumer instance.
// Markers expire after the TTL.
type RedisIdempotencyStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store. An empty
// prefix selects DefaultIdempotencyKeyPrefix.
func NewRedisIdempotencyStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisIdempotencyStore {
	if prefix == "" {
		prefix = DefaultIdempotencyKeyPrefix
	}
	return &RedisIdempotencyStore{client: client, prefix: prefix, ttl: ttl}
}

// Contains reports whether the event ID has a live marker.
func (s *RedisIdempotencyStore) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("check processed event %s: %w", eventID, err)
	}
	return n > 0, nil
}

// Add writes the marker for eventID with the configured TTL.
func (s *RedisIdempotencyStore) Add(ctx context.Context, eventID string) error {
	if err := s.client.Set(ctx, s.key(eventID), time.Now().UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		return fmt.Errorf("mark processed event %s: %w", eventID, err)
	}
	return nil
}

func (s *RedisIdempotencyStore) key(eventID string) string {
	return s.prefix + eventID
}
