// Package lock provides short-lived mutual exclusion keyed by string.  It
// serializes read-then-write sequences against the record store, which has
// no conditional writes: webhook order creation per payment reference and
// refresh-token rotation per user.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock stayed held for the whole wait.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker acquires a lock on key that expires after ttl even if never
// released.  The returned function releases it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

const retryEvery = 25 * time.Millisecond

// RedisLocker uses SET NX PX with a random owner token and deletes the key
// only when it still holds that token.
type RedisLocker struct {
	client *redis.Client
	prefix string
	wait   time.Duration
}

// NewRedisLocker waits up to wait for a held lock before giving up.
func NewRedisLocker(client *redis.Client, prefix string, wait time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = "lock:"
	}
	return &RedisLocker{client: client, prefix: prefix, wait: wait}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k := l.prefix + key
	owner := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, k, owner, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// release must run even if the request context is gone
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(ctx, l.client, []string{k}, owner).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		if err := pause(ctx); err != nil {
			return nil, err
		}
	}
}

// LocalLocker serializes within one process.  It is the fallback when no
// Redis is configured, which is only correct for a single API replica.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	wait time.Duration
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), wait: wait}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	deadline := time.Now().Add(l.wait)
	for {
		now := time.Now()
		l.mu.Lock()
		if exp, ok := l.held[key]; !ok || now.After(exp) {
			token := now.Add(ttl)
			l.held[key] = token
			l.mu.Unlock()
			return func() {
				l.mu.Lock()
				if l.held[key] == token {
					delete(l.held, key)
				}
				l.mu.Unlock()
			}, nil
		}
		l.mu.Unlock()
		if now.After(deadline) {
			return nil, ErrNotAcquired
		}
		if err := pause(ctx); err != nil {
			return nil, err
		}
	}
}

func pause(ctx context.Context) error {
	t := time.NewTimer(retryEvery)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
