// Package eventstream publishes session lifecycle events to an event stream
// backend. Publishing is best effort: callers log failures and carry on.
package eventstream

import "context"

// Publisher publishes session events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *SessionEvent) error
	Close() error
}
