// Package keylock serializes work per key. Holders of different keys never
// wait on each other, and a key's entry exists only while someone holds or
// waits for it.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	// sem has capacity one; a send acquires, a receive releases.
	sem  chan struct{}
	refs int
}

// Registry maps keys to lazily created locks.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx ends. On success the returned
// function releases the lock; it must be called exactly once.
func (r *Registry) Lock(ctx context.Context, key string) (func(), error) {
	e := r.acquire(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		r.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			r.release(key, e)
		})
	}, nil
}

// Len returns the number of keys currently held or waited on.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) acquire(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		r.entries[key] = e
	}
	e.refs++
	return e
}

func (r *Registry) release(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(r.entries, key)
	}
}
