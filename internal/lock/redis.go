package lock

import (
	"context"
	"errors"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisLocker holds leases as Redis keys with a TTL, so a crashed holder
// never blocks a room for longer than the lease.
type RedisLocker struct {
	client *redislock.Client
	opts   Options
}

// NewRedisLocker returns a Locker backed by rdb.
func NewRedisLocker(rdb redis.UniversalClient, opts Options) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), opts: opts.withDefaults()}
}

// Acquire retries at a fixed interval until the key is free or the wait
// elapses.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.opts.Wait)
	defer cancel()

	lk, err := l.client.Obtain(waitCtx, l.opts.Prefix+":"+key, l.opts.TTL, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.opts.Retry),
	})
	switch {
	case err == nil:
		return &redisLease{lock: lk}, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, redislock.ErrNotObtained), errors.Is(err, context.DeadlineExceeded):
		return nil, ErrNotObtained
	default:
		return nil, err
	}
}

type redisLease struct{ lock *redislock.Lock }

func (r *redisLease) Release(ctx context.Context) error {
	if err := r.lock.Release(ctx); err != nil {
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return ErrLeaseExpired
		}
		return err
	}
	return nil
}
