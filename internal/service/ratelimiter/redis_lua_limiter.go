// Package ratelimiter implements a Redis-backed token bucket shared by every
// process that calls the completion provider.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// Limiter decides whether a call may proceed now.
type Limiter interface {
	Allow(ctx context.Context, key string, cost int64) (allowed bool, retryAfter time.Duration, err error)
}

// BucketConfig sizes one token bucket.
type BucketConfig struct {
	Capacity   int64
	RefillRate float64 // tokens per second
}

// NewBucketConfigFromPerMinute builds a bucket that allows perMinute calls per minute
// with a burst of the same size. perMinute <= 0 disables limiting.
func NewBucketConfigFromPerMinute(perMinute int) BucketConfig {
	if perMinute <= 0 {
		return BucketConfig{}
	}
	return BucketConfig{
		Capacity:   int64(perMinute),
		RefillRate: float64(perMinute) / 60.0,
	}
}

// RedisLuaLimiter evaluates the bucket atomically in Redis. When a pool is
// given, bucket state is mirrored to Postgres so it survives a Redis flush.
type RedisLuaLimiter struct {
	redis   *redis.Client
	pool    *pgxpool.Pool
	buckets map[string]BucketConfig
	script  *redis.Script
	mu      sync.RWMutex

	minWait time.Duration
}

// NewRedisLuaLimiter returns nil when rdb is nil; a nil limiter allows everything.
func NewRedisLuaLimiter(rdb *redis.Client, pool *pgxpool.Pool, buckets map[string]BucketConfig) *RedisLuaLimiter {
	if rdb == nil {
		return nil
	}
	if buckets == nil {
		buckets = map[string]BucketConfig{}
	}
	return &RedisLuaLimiter{
		redis:   rdb,
		pool:    pool,
		buckets: buckets,
		script:  redis.NewScript(luaTokenBucketScript),
		minWait: 50 * time.Millisecond,
	}
}

// Redis truncates Lua numbers to integers on return, so tokens and the retry
// delay are returned in milli-units.
const luaTokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] ~= false and data[1] ~= nil then
  tokens = tonumber(data[1])
end
if data[2] ~= false and data[2] ~= nil then
  last_refill = tonumber(data[2])
end

local delta = now - last_refill
if delta < 0 then
  delta = 0
end

tokens = math.min(capacity, tokens + delta * refill_rate)

local allowed = 0
local retry_after_ms = 0

if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
elseif refill_rate > 0 then
  retry_after_ms = math.ceil((cost - tokens) / refill_rate * 1000)
end

redis.call("HSET", key, "tokens", tostring(tokens), "last_refill", tostring(now))
redis.call("EXPIRE", key, math.ceil(capacity / refill_rate) + 60)

return { allowed, math.floor(tokens * 1000), retry_after_ms }
`

// Allow takes cost tokens from the bucket for key. Keys without a bucket and
// Redis errors fail open.
func (l *RedisLuaLimiter) Allow(ctx context.Context, key string, cost int64) (bool, time.Duration, error) {
	if l == nil || l.redis == nil {
		return true, 0, nil
	}
	l.mu.RLock()
	cfg, ok := l.buckets[key]
	l.mu.RUnlock()
	if !ok || cfg.Capacity <= 0 || cfg.RefillRate <= 0 {
		return true, 0, nil
	}
	if cost <= 0 {
		cost = 1
	}

	now := time.Now()
	nowSec := float64(now.UnixNano()) / 1e9

	res, err := l.script.Run(ctx, l.redis, []string{redisKey(key)}, cfg.Capacity, cfg.RefillRate, nowSec, cost).Int64Slice()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.String("key", key), slog.Any("error", err))
		return true, 0, err
	}
	if len(res) < 3 {
		slog.Error("redis rate limiter unexpected script result", slog.String("key", key), slog.Any("result", res))
		return true, 0, nil
	}

	allowed := res[0] == 1
	tokens := float64(res[1]) / 1000
	retryAfter := time.Duration(res[2]) * time.Millisecond

	if l.pool != nil {
		l.mirrorToPostgres(ctx, key, cfg, tokens, now)
	}
	return allowed, retryAfter, nil
}

// Wait blocks until the bucket for key grants cost tokens or ctx is done.
// A cancelled wait is reported as domain.ErrRateLimited.
func (l *RedisLuaLimiter) Wait(ctx context.Context, key string, cost int64) error {
	for {
		allowed, retryAfter, err := l.Allow(ctx, key, cost)
		if err != nil || allowed {
			// fail open on limiter errors; the provider's own 429 still applies
			return nil
		}
		if retryAfter < l.minWait {
			retryAfter = l.minWait
		}
		slog.Debug("rate limiter waiting", slog.String("key", key), slog.Duration("retry_after", retryAfter))
		t := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: waiting for %s: %v", domain.ErrRateLimited, key, ctx.Err())
		case <-t.C:
		}
	}
}

func redisKey(key string) string { return "rate:" + key }

func (l *RedisLuaLimiter) mirrorToPostgres(ctx context.Context, key string, cfg BucketConfig, tokens float64, at time.Time) {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO rate_limit_buckets (bucket_key, capacity, refill_rate, tokens, last_refill)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (bucket_key) DO UPDATE SET
		   capacity = EXCLUDED.capacity,
		   refill_rate = EXCLUDED.refill_rate,
		   tokens = EXCLUDED.tokens,
		   last_refill = EXCLUDED.last_refill`,
		key, cfg.Capacity, cfg.RefillRate, tokens, at,
	)
	if err != nil {
		slog.Error("failed to mirror rate limit bucket to postgres", slog.String("key", key), slog.Any("error", err))
	}
}

// WarmFromPostgres restores mirrored bucket state into Redis at startup.
func (l *RedisLuaLimiter) WarmFromPostgres(ctx context.Context) error {
	if l == nil || l.pool == nil || l.redis == nil {
		return nil
	}

	rows, err := l.pool.Query(ctx, `SELECT bucket_key, tokens, EXTRACT(EPOCH FROM last_refill)::float8 FROM rate_limit_buckets`)
	if err != nil {
		return fmt.Errorf("op=ratelimiter.warm: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var tokens, lastRefillSec float64
		if err := rows.Scan(&key, &tokens, &lastRefillSec); err != nil {
			return fmt.Errorf("op=ratelimiter.warm.scan: %w", err)
		}
		if err := l.redis.HSet(ctx, redisKey(key), "tokens", tokens, "last_refill", lastRefillSec).Err(); err != nil {
			slog.Error("failed to warm Redis bucket from postgres", slog.String("key", key), slog.Any("error", err))
		}
	}
	return rows.Err()
}

// SetBucketConfig updates or creates the bucket for key. Safe for concurrent use.
func (l *RedisLuaLimiter) SetBucketConfig(key string, cfg BucketConfig) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buckets == nil {
		l.buckets = map[string]BucketConfig{}
	}
	l.buckets[key] = cfg
}
