// Package lock provides short-lived named locks. Redis backs them when it is
// configured; otherwise they only hold within this process.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"go-pos-engine/internal/apperr"
)

// Release gives the lock back. It is safe to call once.
type Release func(ctx context.Context) error

type Locker interface {
	// Obtain takes key for at most ttl. It does not wait: a held key fails
	// straight away with apperr.ErrLocked.
	Obtain(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	lk, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, apperr.ErrLocked
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		err := lk.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// expired before release; nothing left to give back
			return nil
		}
		return err
	}, nil
}

// LocalLocker is the in-process fallback. Expired keys are taken over by the
// next caller, matching the redis TTL semantics.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]time.Time{}, now: time.Now}
}

func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, apperr.ErrLocked
	}
	until := now.Add(ttl)
	l.held[key] = until

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key].Equal(until) {
				delete(l.held, key)
			}
		})
		return nil
	}, nil
}
