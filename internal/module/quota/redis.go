package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "jobhunter_rl"
	DefaultKeyTTL    = 48 * time.Hour
)

// RedisStore keeps counters in Redis so every instance behind the load balancer shares them.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store. Keys expire ttl after their last increment.
func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the counter key for a user and day.
func (s *RedisStore) Key(userID string, day int64) string {
	return fmt.Sprintf("%s:u:%s:d:%d", s.prefix, userID, day)
}

// Get reads the counter; a missing key counts as 0.
func (s *RedisStore) Get(ctx context.Context, userID string, day int64) (int, error) {
	n, err := s.client.Get(ctx, s.Key(userID, day)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get quota counter: %w", err)
	}
	return n, nil
}

// Increment runs INCR and EXPIRE in one MULTI block so an abandoned key always expires.
func (s *RedisStore) Increment(ctx context.Context, userID string, day int64) (int, error) {
	key := s.Key(userID, day)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment quota counter: %w", err)
	}
	return int(incr.Val()), nil
}
