package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when no source knows the key.
var ErrNotFound = errors.New("setting not found")

// Source is a key/value configuration store.
type Source interface {
	// GetSetting returns the value and whether the key exists.
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// entry is one cached lookup, including misses.
type entry struct {
	value   string
	found   bool
	fetched time.Time
}

// Cache is a TTL cache in front of a Source. It is built once per process and
// handed to every component that reads configuration values.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	sf      singleflight.Group
}

// NewCache creates a cache. A zero ttl disables caching.
func NewCache(source Source, ttl time.Duration) *Cache {
	return &Cache{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

func (c *Cache) fresh(e entry) bool {
	if c.ttl == 0 {
		return false
	}
	return c.now().Sub(e.fetched) <= c.ttl
}

// lookup returns the cached or freshly loaded value for key.
// Concurrent misses for the same key share one source read.
func (c *Cache) lookup(ctx context.Context, key string) (entry, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.fresh(e) {
		return e, nil
	}

	result, err, _ := c.sf.Do(key, func() (any, error) {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && c.fresh(e) {
			return e, nil
		}

		value, found, err := c.source.GetSetting(ctx, key)
		if err != nil {
			return entry{}, fmt.Errorf("failed to read setting %s: %w", key, err)
		}
		e = entry{value: value, found: found, fetched: c.now()}

		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return entry{}, err
	}
	return result.(entry), nil
}

// Get returns the value for key or ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	e, err := c.lookup(ctx, key)
	if err != nil {
		return "", err
	}
	if !e.found {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return e.value, nil
}

// Invalidate drops one key, or every key when none are given.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(keys) == 0 {
		c.entries = make(map[string]entry)
		return
	}
	for _, k := range keys {
		delete(c.entries, k)
	}
}
