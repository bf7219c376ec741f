package kv

import "errors"

// NotFoundError is returned when a key doesn't exist or has expired.
type NotFoundError struct {
	Key string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return "key not found"
	}

	return "key not found: " + e.Key
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("kv: backend closed")
