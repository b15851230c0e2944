package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares counters between instances. Each key carries its window as a
// Redis expiry, so the reset time is derived from the remaining TTL.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (int, time.Time, bool, error) {
	pipe := s.rdb.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, time.Time{}, false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	raw, err := getCmd.Result()
	if errors.Is(err, redis.Nil) {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, err
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("corrupt rate limit counter %q: %w", key, err)
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return 0, time.Time{}, false, nil
	}

	return count, time.Now().Add(ttl), true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, count int, resetTime time.Time) error {
	ttl := time.Until(resetTime)
	if ttl <= 0 {
		return s.Reset(ctx, key)
	}
	return s.rdb.Set(ctx, key, count, ttl).Err()
}

// incrementScript bumps the counter and opens the window in one step. A counter left
// without an expiry is given one too, so it cannot outlive its window.
var incrementScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIREAT", KEYS[1], ARGV[1])
end
return count
`)

func (s *RedisStore) Increment(ctx context.Context, key string, resetTime time.Time) (int, error) {
	count, err := incrementScript.Run(ctx, s.rdb, []string{key}, resetTime.UnixMilli()).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	return count, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
