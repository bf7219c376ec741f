package logger

import (
	"io"
	"log/slog"
)

// Option configures a Logger created with New.
type Option func(*config)

// WithLevel sets the minimum level. The default is Info.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithDebug lowers the level to Debug when debug is true and leaves it
// untouched otherwise.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects the colorized charmbracelet/log handler used on
// terminals.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		if pretty {
			c.format = formatPretty
		}
	}
}

// WithJSON selects slog's JSON handler, the format `recall logs` reads.
func WithJSON(json bool) Option {
	return func(c *config) {
		if json {
			c.format = formatJSON
		}
	}
}

// WithWriter sets the output. Several writers are combined with
// io.MultiWriter; the default is os.Stdout.
func WithWriter(w ...io.Writer) Option {
	return func(c *config) { c.writers = w }
}

// WithSource includes source file:line in log output.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}

// WithAttrs adds key/value pairs to every record, as slog.Logger.With does.
func WithAttrs(args ...any) Option {
	return func(c *config) { c.attrs = append(c.attrs, args...) }
}
