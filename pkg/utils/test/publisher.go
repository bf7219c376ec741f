package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/recall/pkg/eventstream"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.SessionEvent

	// Fail makes Publish return an error.
	Fail bool

	// Block, when set, holds every Publish until it is closed.
	Block chan struct{}
}

// NewMockPublisher creates an empty MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, event *eventstream.SessionEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if m.Block != nil {
		<-m.Block
	}
	if m.Fail {
		return errors.New("mock publisher failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Events returns the published events in order.
func (m *MockPublisher) Events() []*eventstream.SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.SessionEvent(nil), m.events...)
}

// Types returns the event type of each published event.
func (m *MockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.EventType
	}
	return out
}
