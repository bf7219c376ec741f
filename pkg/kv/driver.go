// Package kv defines the key-value-with-TTL capability the session store is
// built on, and the errors its backends share.
package kv

import (
	"context"
	"time"
)

// Entry is one key and the bytes stored under it.
type Entry struct {
	Key   string
	Value []byte

	// Delete removes Key as part of the Set instead of writing Value.
	Delete bool
}

// Remove returns an Entry that deletes key when passed to Set.
func Remove(key string) Entry {
	return Entry{Key: key, Delete: true}
}

// Driver defines the interface for a key-value backend whose keys expire.
//
// Backends must treat a key whose TTL has elapsed exactly like a key that
// was never written.
type Driver interface {
	// Get returns the value stored under key, or NotFoundError when the key
	// is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes every entry with the same TTL and removes entries marked
	// Delete. Either all entries are applied or none are.
	Set(ctx context.Context, ttl time.Duration, entries ...Entry) error

	// Expire resets the TTL of the given keys. Missing keys are ignored.
	Expire(ctx context.Context, ttl time.Duration, keys ...string) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Close releases any resources held by the backend.
	Close() error
}
