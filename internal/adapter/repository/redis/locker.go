package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/envelopes/internal/domain"
	"github.com/iho/envelopes/internal/usecase"
)

// Locker implements usecase.BookLocker across processes. Writers hold a Redis lock per
// storage key on top of the in-process lock; readers only take the in-process lock
// because saves replace documents atomically.
type Locker struct {
	local  *usecase.LocalLocker
	client *redislock.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
	logger zerolog.Logger
}

// NewLocker creates a new Locker.
func NewLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Locker {
	return &Locker{
		local:  usecase.NewLocalLocker(),
		client: redislock.New(client),
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		prefix: "envelopes:lock:",
		logger: logger,
	}
}

// Lock takes the exclusive lock for key, waiting until ctx is done or the lock TTL
// elapses.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	releaseLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	lock, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if err != nil {
		releaseLocal()
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLockNotObtained, key)
		}
		return nil, &domain.StorageError{Op: "lock", Key: key, Err: err}
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn().Err(err).Str("storage_key", key).Msg("failed to release book lock")
		}
		releaseLocal()
	}, nil
}

// RLock takes a shared in-process lock for key.
func (l *Locker) RLock(ctx context.Context, key string) (func(), error) {
	return l.local.RLock(ctx, key)
}
