package logger

import (
	"context"
	"errors"
	"log/slog"
)

// multiHandler hands every record to each of its handlers. The serve command
// uses it to write pretty output to the terminal and JSON to a log file.
type multiHandler struct {
	handlers []slog.Handler
}

// Multi returns a logger that writes every record through the handlers of
// all given loggers. Nil loggers are skipped and nested Multi loggers are
// flattened.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	var handlers []slog.Handler
	for _, l := range loggers {
		if l == nil {
			continue
		}
		if mh, ok := l.Handler().(*multiHandler); ok {
			handlers = append(handlers, mh.handlers...)
			continue
		}
		handlers = append(handlers, l.Handler())
	}
	return slog.New(&multiHandler{handlers: handlers})
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps writing to the remaining handlers when one fails and returns
// the joined errors.
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *multiHandler) derive(fn func(slog.Handler) slog.Handler) *multiHandler {
	children := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		children[i] = fn(h)
	}
	return &multiHandler{handlers: children}
}
