// Package api provides the HTTP API of the conversation memory service.
package api

import "time"

const (
	defaultBodyLimit   = 1 << 20
	defaultIdleTimeout = 2 * time.Minute
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on, e.g. ":8082".
	ListenAddr string

	// BodyLimit caps request bodies in bytes. Zero means 1 MiB.
	BodyLimit int

	// IdleTimeout closes keep-alive connections after this long. Zero means
	// two minutes.
	IdleTimeout time.Duration
}

func (c Config) fiberLimits() (int, time.Duration) {
	limit, idle := c.BodyLimit, c.IdleTimeout
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	return limit, idle
}
