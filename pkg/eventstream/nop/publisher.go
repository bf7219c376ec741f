// Package nop provides a publisher that drops every session event.
package nop

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/papercomputeco/recall/pkg/eventstream"
)

// Publisher discards events. It is the default when no events provider is
// configured.
type Publisher struct {
	log     *slog.Logger
	dropped atomic.Int64
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger makes the publisher log each discarded event at debug level.
func WithLogger(log *slog.Logger) Option {
	return func(p *Publisher) {
		p.log = log
	}
}

func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish rejects nil events and drops everything else.
func (p *Publisher) Publish(ctx context.Context, event *eventstream.SessionEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	p.dropped.Add(1)
	if p.log != nil {
		p.log.DebugContext(ctx, "dropping session event",
			"event_type", event.EventType,
			"session_id", event.SessionID,
		)
	}
	return nil
}

// Dropped reports how many events have been discarded.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) Close() error {
	return nil
}
