// Package inmemory provides a process-local kv.Driver backed by a bounded
// LRU cache. Suitable for development and tests; contents are lost on exit.
//
// Keys that share everything before their last ':' form a group, and the
// cache is bounded in groups: a session's turns and summary keys are kept
// or evicted together, never one without the other.
package inmemory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/papercomputeco/recall/pkg/kv"
)

// DefaultSize is the number of key groups kept before the least recently
// used group is dropped.
const DefaultSize = 10_000

type item struct {
	value     []byte
	expiresAt time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

type group map[string]item

// groupOf returns the eviction group of key.
func groupOf(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// Driver implements kv.Driver using an in-memory LRU cache of key groups.
type Driver struct {
	// mu guards the group maps and makes multi-key writes atomic to readers
	mu sync.RWMutex

	cache  *lru.Cache[string, group]
	now    func() time.Time
	closed bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock replaces time.Now, letting tests move time forward.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// NewDriver creates a new in-memory driver holding at most size key groups.
// A size below 1 uses DefaultSize.
func NewDriver(size int, opts ...Option) (*Driver, error) {
	if size < 1 {
		size = DefaultSize
	}

	cache, err := lru.New[string, group](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}

	d := &Driver{
		cache: cache,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Get returns the value stored under key.
func (d *Driver) Get(_ context.Context, key string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, kv.ErrClosed
	}

	g, ok := d.cache.Get(groupOf(key))
	if !ok {
		return nil, kv.NotFoundError{Key: key}
	}
	it, ok := g[key]
	if !ok || it.expired(d.now()) {
		return nil, kv.NotFoundError{Key: key}
	}
	return slices.Clone(it.value), nil
}

// Set applies every entry with the same expiry.
func (d *Driver) Set(_ context.Context, ttl time.Duration, entries ...kv.Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return kv.ErrClosed
	}

	expiresAt := d.expiry(ttl)
	for _, e := range entries {
		if e.Delete {
			d.remove(e.Key)
			continue
		}

		name := groupOf(e.Key)
		g, ok := d.cache.Get(name)
		if !ok {
			g = group{}
			d.cache.Add(name, g)
		}
		g[e.Key] = item{value: slices.Clone(e.Value), expiresAt: expiresAt}
	}
	return nil
}

// Expire resets the expiry of keys that are still live and marks their
// groups as recently used.
func (d *Driver) Expire(_ context.Context, ttl time.Duration, keys ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return kv.ErrClosed
	}

	now := d.now()
	expiresAt := d.expiry(ttl)
	for _, k := range keys {
		g, ok := d.cache.Get(groupOf(k))
		if !ok {
			continue
		}
		it, ok := g[k]
		if !ok || it.expired(now) {
			continue
		}
		it.expiresAt = expiresAt
		g[k] = it
	}
	return nil
}

// Delete removes keys.
func (d *Driver) Delete(_ context.Context, keys ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return kv.ErrClosed
	}

	for _, k := range keys {
		d.remove(k)
	}
	return nil
}

// remove deletes key and drops its group once empty. Callers hold mu.
func (d *Driver) remove(key string) {
	name := groupOf(key)
	g, ok := d.cache.Peek(name)
	if !ok {
		return
	}
	delete(g, key)
	if len(g) == 0 {
		d.cache.Remove(name)
	}
}

// Len returns the number of keys held, expired or not.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, name := range d.cache.Keys() {
		if g, ok := d.cache.Peek(name); ok {
			n += len(g)
		}
	}
	return n
}

// Close drops all keys.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache.Purge()
	d.closed = true
	return nil
}

func (d *Driver) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return d.now().Add(ttl)
}
