// Package errors defines sentinel errors shared across the trendwatch
// components, plus classification helpers for the durable-store failure
// domain.
//
// Store failures are always recoverable at the service boundary: callers
// log them and degrade (empty range, no-op delete, cold-started cache)
// instead of propagating them to the dashboard.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable indicates the durable store could not serve an
	// operation (I/O failure, closed database, serialization failure).
	ErrStoreUnavailable = errors.New("durable store unavailable")

	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("store closed")

	// ErrNotRunning indicates an operation on a stopped service.
	ErrNotRunning = errors.New("service not running")

	// ErrAlreadyRunning indicates a second Start/Init on a running service.
	ErrAlreadyRunning = errors.New("service already running")

	// ErrQueueFull indicates the ingest writer queue rejected a durable
	// write. The in-memory append has already succeeded when this occurs.
	ErrQueueFull = errors.New("ingest write queue full")

	// ErrUnknownWindow indicates a window label outside the fixed table.
	ErrUnknownWindow = errors.New("unknown time window")
)

// StoreError wraps a durable-store failure with the operation that
// produced it. It is always recoverable: no StoreError crosses the
// service's public contract as anything but a logged degradation.
type StoreError struct {
	Op  string // "append", "range", "delete-older", "delete-key", "count"
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err as a StoreError for the given operation.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// IsStoreError reports whether err originated in the durable store.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se) || errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrStoreClosed)
}

// IsRecoverable reports whether the caller should log and continue.
// Everything in the store failure domain is recoverable, as is queue
// overflow (the cache write has already happened by then).
func IsRecoverable(err error) bool {
	return IsStoreError(err) || errors.Is(err, ErrQueueFull)
}
