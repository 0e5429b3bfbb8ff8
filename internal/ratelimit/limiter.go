// Package ratelimit implements fixed-window request counters.  Windows are
// aligned to wall-clock multiples of their length, so every client's
// window for a tier resets at the same instant.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Result describes one counted hit.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter counts a hit against key in a window of the given size and
// reports whether it stays within limit.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// bucketKey names the counter for the window containing now.
func bucketKey(prefix, key string, now time.Time, window time.Duration) (string, time.Time) {
	start := now.UTC().Truncate(window)
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix()), start.Add(window)
}

func result(hits int64, limit int, ttl time.Duration) Result {
	max := int64(limit)
	res := Result{Allowed: hits <= max, CurrentHits: hits, WindowTTL: ttl}
	if rem := max - hits; rem > 0 {
		res.Remaining = rem
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res
}

// RedisLimiter keeps counters in Redis (INCR + EXPIRE on first hit) so
// limits hold across API replicas.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := l.now()
	redisKey, end := bucketKey(l.prefix, key, now, window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}
	// set expiry on first hit, or repair a counter that lost it
	if incr.Val() == 1 || ttl.Val() < 0 {
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return Result{}, err
		}
	}
	return result(incr.Val(), limit, end.Sub(now)), nil
}

// MemoryLimiter is the single-process fallback used when Redis is not
// configured.  Counters expire with their window.
type MemoryLimiter struct {
	mu     sync.Mutex
	prefix string
	cache  *gocache.Cache
	now    func() time.Time
}

func NewMemoryLimiter(prefix string) *MemoryLimiter {
	return &MemoryLimiter{
		prefix: prefix,
		cache:  gocache.New(15*time.Minute, 5*time.Minute),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := l.now()
	k, end := bucketKey(l.prefix, key, now, window)
	ttl := end.Sub(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	hits, err := l.cache.IncrementInt64(k, 1)
	if err != nil {
		// first hit in this window
		l.cache.Set(k, int64(1), ttl)
		hits = 1
	}
	return result(hits, limit, ttl), nil
}
