package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

var ErrLockNotObtained = errors.New("lock_not_obtained")

const lockRetryInterval = 100 * time.Millisecond

// Locker hands out redis locks that expire after ttl unless released.
type Locker struct {
	client *redislock.Client
}

func NewLocker(client redislock.RedisClient) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: redislock.New(client)}
}

// Lock waits up to wait for key. It returns ErrLockNotObtained when the
// wait elapses or ctx ends first.
func (l *Locker) Lock(ctx context.Context, key string, ttl, wait time.Duration) (*redislock.Lock, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("lock client not configured")
	}
	if key == "" {
		return nil, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	lock, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: retryStrategy(wait),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

func retryStrategy(wait time.Duration) redislock.RetryStrategy {
	if wait <= 0 {
		return redislock.NoRetry()
	}
	return redislock.LimitRetry(redislock.LinearBackoff(lockRetryInterval), int(wait/lockRetryInterval))
}

// Release drops the lock if this process still holds it.
func Release(ctx context.Context, lock *redislock.Lock) error {
	if lock == nil {
		return nil
	}
	err := lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
