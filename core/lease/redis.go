package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const retryInterval = 250 * time.Millisecond

// RedisLocker leases keys through Redis so several processes share one view.
type RedisLocker struct {
	client *redislock.Client
	opts   Options
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return rdb, nil
}

// NewRedisLocker wraps an existing Redis client.
func NewRedisLocker(rdb redislock.RedisClient, opts Options) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), opts: opts.withDefaults()}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.Wait)
	defer cancel()

	attempts := int(l.opts.Wait / retryInterval)
	lock, err := l.client.Obtain(ctx, key, l.opts.TTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryInterval), attempts),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, err
	}
	return newRedisLease(lock, l.opts.TTL), nil
}

// heldLock is the part of *redislock.Lock a lease uses.
type heldLock interface {
	Refresh(ctx context.Context, ttl time.Duration, opt *redislock.Options) error
	Release(ctx context.Context) error
}

// redisLease extends its TTL every half period until released, so a device
// call slower than the TTL keeps the key.
type redisLease struct {
	lock heldLock
	stop context.CancelFunc
	done chan struct{}
}

func newRedisLease(lock heldLock, ttl time.Duration) *redisLease {
	ctx, cancel := context.WithCancel(context.Background())
	r := &redisLease{lock: lock, stop: cancel, done: make(chan struct{})}
	go r.keepAlive(ctx, ttl)
	return r
}

func (r *redisLease) keepAlive(ctx context.Context, ttl time.Duration) {
	defer close(r.done)
	interval := ttl / 2
	if interval <= 0 {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A lost key cannot be won back by refreshing.
			if err := r.lock.Refresh(ctx, ttl, nil); err != nil {
				return
			}
		}
	}
}

func (r *redisLease) Release(ctx context.Context) error {
	r.stop()
	<-r.done
	err := r.lock.Release(ctx)
	// An expired lease has already been released by Redis.
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
