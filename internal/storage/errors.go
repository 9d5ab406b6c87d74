package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a post, backup or user does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports bad or missing input; the message is safe to
// show to the caller verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StorageError wraps a file I/O failure. Handlers map it to a generic
// message so filesystem paths never leak to clients.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
