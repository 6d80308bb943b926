package lease

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotObtained is returned when the lease is held elsewhere for the whole wait.
var ErrNotObtained = errors.New("lease not obtained")

// Lease is a held exclusive claim on a key.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive leases keyed by string.
type Locker interface {
	// Acquire blocks until the key is free, the wait elapses or ctx is done.
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Options configure how long leases live and how long callers wait for them.
type Options struct {
	// TTL bounds how long a crashed holder can keep the key.
	TTL time.Duration
	// Wait bounds how long Acquire blocks.
	Wait time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 2 * time.Minute
	}
	if o.Wait <= 0 {
		o.Wait = 30 * time.Second
	}
	return o
}

// LockKey is the lease key guarding device changes on one physical lock.
func LockKey(lockID string) string {
	return "lockcode:lock:" + lockID
}

// With runs fn while holding the lease for key.
func With(ctx context.Context, l Locker, key string, fn func(ctx context.Context) error) error {
	held, err := l.Acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	defer func() {
		// Use a fresh context so a cancelled caller still frees the key.
		_ = held.Release(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}
