package session

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable is wrapped by every error caused by the backing store
// failing. Callers should treat it as retryable.
var ErrStoreUnavailable = errors.New("session store unavailable")

// CorruptRecordError describes a stored record that could not be decoded.
// The store logs it and treats the record as absent; it is never returned.
type CorruptRecordError struct {
	SessionID string
	Key       string
	Err       error
}

func (e CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt session record %s for session %s: %v", e.Key, e.SessionID, e.Err)
}

func (e CorruptRecordError) Unwrap() error {
	return e.Err
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
