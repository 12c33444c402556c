package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// reserveScript prunes, checks for a duplicate member, checks the budget, and
// records the reservation in one atomic step. Members are tokens; scores are
// reservation times in milliseconds.
//
// Returns {status, count, oldest_ms} where status is 1 allowed, 0 denied,
// 2 duplicate.
var reserveScript = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local function oldest()
  local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  if #first == 0 then return 0 end
  return tonumber(first[2])
end

local count = redis.call('ZCARD', key)
if redis.call('ZSCORE', key, member) then
  return {2, count, oldest()}
end
if count >= limit then
  return {0, count, oldest()}
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
return {1, count + 1, oldest()}
`)

// RedisWindowLimiter implements WindowLimiter with one sorted set per key,
// shared by every engine instance pointed at the same Redis.
type RedisWindowLimiter struct {
	client *redis.Client
	prefix string
	owned  bool
}

// NewRedisWindowLimiter wraps an existing client. Close does not close it.
func NewRedisWindowLimiter(client *redis.Client, prefix string) *RedisWindowLimiter {
	return &RedisWindowLimiter{client: client, prefix: prefix}
}

// DialRedisWindowLimiter connects to redisURL, verifies the connection, and
// returns a limiter that owns the client.
func DialRedisWindowLimiter(ctx context.Context, redisURL, prefix string) (*RedisWindowLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ratelimit: ping redis: %w", err)
	}
	return &RedisWindowLimiter{client: client, prefix: prefix, owned: true}, nil
}

// Reserve implements WindowLimiter.
func (r *RedisWindowLimiter) Reserve(ctx context.Context, key, token string, limit int, window time.Duration, now time.Time) (Reservation, error) {
	res := Reservation{Limit: limit}
	if limit <= 0 {
		return res, nil
	}
	member := token
	if member == "" {
		member = uuid.NewString()
	}
	vals, err := reserveScript.Run(ctx, r.client, []string{r.prefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, member,
	).Int64Slice()
	if err != nil {
		return res, fmt.Errorf("ratelimit: reserve %s: %w", key, err)
	}
	if len(vals) != 3 {
		return res, fmt.Errorf("ratelimit: reserve %s: unexpected reply length %d", key, len(vals))
	}

	status, count, oldest := vals[0], int(vals[1]), vals[2]
	res.Allowed = status == 1
	res.Duplicate = status == 2
	res.Remaining = max(0, limit-count)
	if oldest > 0 {
		res.ResetAt = time.UnixMilli(oldest).Add(window)
	}
	return res, nil
}

// Close closes the client when the limiter dialed it.
func (r *RedisWindowLimiter) Close() error {
	if r.owned {
		return r.client.Close()
	}
	return nil
}
