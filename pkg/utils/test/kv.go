package testutils

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/recall/pkg/kv"
	"github.com/papercomputeco/recall/pkg/kv/inmemory"
)

// ErrMockUnavailable is returned by MockKVDriver operations configured to fail.
var ErrMockUnavailable = errors.New("mock kv unavailable")

// MockKVDriver is an in-memory kv.Driver whose operations can be made to
// fail, and which counts the calls it receives.
type MockKVDriver struct {
	*inmemory.Driver

	// FailGet, FailSet, FailExpire and FailDelete make the matching operation
	// return ErrMockUnavailable.
	FailGet    atomic.Bool
	FailSet    atomic.Bool
	FailExpire atomic.Bool
	FailDelete atomic.Bool

	mu      sync.Mutex
	sets    int
	expires int

	// SetHook, when non-nil, runs at the start of every Set.
	SetHook func()
}

// NewMockKVDriver creates a mock driver using now as its clock. A nil now
// uses time.Now.
func NewMockKVDriver(now func() time.Time) *MockKVDriver {
	var opts []inmemory.Option
	if now != nil {
		opts = append(opts, inmemory.WithClock(now))
	}
	d, err := inmemory.NewDriver(0, opts...)
	if err != nil {
		panic(err)
	}
	return &MockKVDriver{Driver: d}
}

func (m *MockKVDriver) Get(ctx context.Context, key string) ([]byte, error) {
	if m.FailGet.Load() {
		return nil, ErrMockUnavailable
	}
	return m.Driver.Get(ctx, key)
}

func (m *MockKVDriver) Set(ctx context.Context, ttl time.Duration, entries ...kv.Entry) error {
	if m.SetHook != nil {
		m.SetHook()
	}
	if m.FailSet.Load() {
		return ErrMockUnavailable
	}
	m.mu.Lock()
	m.sets++
	m.mu.Unlock()
	return m.Driver.Set(ctx, ttl, entries...)
}

func (m *MockKVDriver) Expire(ctx context.Context, ttl time.Duration, keys ...string) error {
	if m.FailExpire.Load() {
		return ErrMockUnavailable
	}
	m.mu.Lock()
	m.expires++
	m.mu.Unlock()
	return m.Driver.Expire(ctx, ttl, keys...)
}

func (m *MockKVDriver) Delete(ctx context.Context, keys ...string) error {
	if m.FailDelete.Load() {
		return ErrMockUnavailable
	}
	return m.Driver.Delete(ctx, keys...)
}

// Sets returns the number of successful Set calls.
func (m *MockKVDriver) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// Expires returns the number of successful Expire calls.
func (m *MockKVDriver) Expires() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expires
}
