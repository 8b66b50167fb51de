package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces limiter keys.
const DefaultRedisKeyPrefix = "gousers:ratelimit:"

// slidingWindow trims the set to the window, then admits the request if it fits.
// Returns {allowed, count after the call, oldest score in microseconds}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	local allowed = 0
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		count = count + 1
		allowed = 1
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local first = now
	if oldest[2] then
		first = tonumber(oldest[2])
	end

	return {allowed, count, first}
`)

// RedisLimiter is a Redis-backed sliding window limiter, shared across instances.
type RedisLimiter struct {
	client    redis.Cmdable
	keyPrefix string
	limit     int
	period    time.Duration
	seq       atomic.Uint64
}

// RedisConfig holds Redis rate limiter configuration.
type RedisConfig struct {
	// Client is the Redis client to use. It is not closed by the limiter.
	Client redis.Cmdable

	// KeyPrefix is the prefix for all rate limit keys.
	// Defaults to DefaultRedisKeyPrefix.
	KeyPrefix string

	// Requests is the number of requests allowed per window.
	Requests int

	// Window is the time window for the rate limit.
	Window time.Duration
}

// NewRedisLimiter creates a new Redis-backed rate limiter.
func NewRedisLimiter(cfg *RedisConfig) *RedisLimiter {
	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	limit := cfg.Requests
	if limit <= 0 {
		limit = DefaultRequests
	}
	period := cfg.Window
	if period <= 0 {
		period = DefaultWindow
	}

	return &RedisLimiter{
		client:    cfg.Client,
		keyPrefix: keyPrefix,
		limit:     limit,
		period:    period,
	}
}

// Allow records one request for key.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	nowMicro := now.UnixMicro()
	member := strconv.FormatInt(nowMicro, 10) + "-" + strconv.FormatUint(r.seq.Add(1), 10)

	vals, err := slidingWindow.Run(ctx, r.client, []string{r.keyPrefix + key},
		now.Add(-r.period).UnixMicro(),
		nowMicro,
		r.limit,
		r.period.Milliseconds(),
		member,
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit script failed: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("redis rate limit script returned %d values", len(vals))
	}

	count := int(vals[1])
	remaining := r.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   vals[0] == 1,
		Limit:     r.limit,
		Remaining: remaining,
		ResetAt:   time.UnixMicro(vals[2]).Add(r.period),
	}, nil
}

// Reset clears the recorded requests for key.
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key).Err()
}

// Close is a no-op as the client is managed externally.
func (r *RedisLimiter) Close() error {
	return nil
}
