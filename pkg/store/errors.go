package store

import (
	"context"
	"errors"
	"fmt"
)

// StorageError reports a failed or timed-out durable-tier operation.
type StorageError struct {
	Op  string // get, set, remove, apply, list
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err stems from an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")
