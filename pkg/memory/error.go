package memory

import "errors"

// ErrInvalidInput is returned for malformed calls: empty session ids,
// queries, or answers.
var ErrInvalidInput = errors.New("invalid input")
