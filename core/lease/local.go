package lease

import (
	"context"
	"sync"
	"time"
)

// LocalLocker leases keys within a single process.
type LocalLocker struct {
	opts Options

	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker(opts Options) *LocalLocker {
	return &LocalLocker{opts: opts.withDefaults(), held: make(map[string]chan struct{})}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	timer := time.NewTimer(l.opts.Wait)
	defer timer.Stop()

	for {
		l.mu.Lock()
		done, busy := l.held[key]
		if !busy {
			done = make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()
			return &localLease{owner: l, key: key, done: done}, nil
		}
		l.mu.Unlock()

		select {
		case <-done:
		case <-timer.C:
			return nil, ErrNotObtained
		case <-ctx.Done():
			return nil, ErrNotObtained
		}
	}
}

type localLease struct {
	owner *LocalLocker
	key   string
	done  chan struct{}
	once  sync.Once
}

func (r *localLease) Release(context.Context) error {
	r.once.Do(func() {
		r.owner.mu.Lock()
		if r.owner.held[r.key] == r.done {
			delete(r.owner.held, r.key)
		}
		r.owner.mu.Unlock()
		close(r.done)
	})
	return nil
}
