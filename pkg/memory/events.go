package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/metrics"
)

const defaultEventBuffer = 256

// emitter hands session events to the publisher from its own goroutine so
// a slow or unreachable broker never holds up a request. Events keep their
// order. When the buffer is full new events are dropped.
type emitter struct {
	publisher eventstream.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	queue chan *eventstream.SessionEvent
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newEmitter(p eventstream.Publisher, size int, mt *metrics.Metrics, log *slog.Logger) *emitter {
	if size < 1 {
		size = defaultEventBuffer
	}
	e := &emitter{
		publisher: p,
		metrics:   mt,
		logger:    log,
		queue:     make(chan *eventstream.SessionEvent, size),
		done:      make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *emitter) run() {
	defer close(e.done)
	for event := range e.queue {
		if err := e.publisher.Publish(context.Background(), event); err != nil {
			e.metrics.EventsDropped.WithLabelValues("publish_failed").Inc()
			e.logger.Warn("failed to publish session event",
				"session_id", event.SessionID,
				"event_type", event.EventType,
				"error", err,
			)
		}
	}
}

// emit queues event without blocking.
func (e *emitter) emit(ctx context.Context, event *eventstream.SessionEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.metrics.EventsDropped.WithLabelValues("closed").Inc()
		return
	}

	select {
	case e.queue <- event:
	default:
		e.metrics.EventsDropped.WithLabelValues("buffer_full").Inc()
		e.logger.WarnContext(ctx, "event buffer full, dropping session event",
			"session_id", event.SessionID,
			"event_type", event.EventType,
		)
	}
}

// close stops accepting events and waits for queued ones to be published.
func (e *emitter) close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	<-e.done
}
