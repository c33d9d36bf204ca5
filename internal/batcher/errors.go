package batcher

import (
	"errors"
	"fmt"
)

var (
	// ErrOverloaded is returned by Admit when the in-flight ceiling is reached.
	ErrOverloaded = errors.New("rejected: overloaded")
	// ErrInvalidRequest is returned by Admit for malformed payloads.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrBackendFailure is delivered to every member of a failed batch.
	ErrBackendFailure = errors.New("backend failure")
	// ErrCancelled is delivered to a caller that withdrew before resolution.
	ErrCancelled = errors.New("request cancelled")
	// ErrClosed is returned by Admit after Close.
	ErrClosed = errors.New("batcher is closed")
)

// BackendError carries the batch a backend failure belongs to.
type BackendError struct {
	Model   string
	BatchID uint64
	Size    int
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend failure: model=%s batch=%d size=%d: %v", e.Model, e.BatchID, e.Size, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrBackendFailure) match without losing the cause chain.
func (e *BackendError) Is(target error) bool { return target == ErrBackendFailure }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// IsOverloaded reports whether err indicates backpressure (return 429).
func IsOverloaded(err error) bool { return errors.Is(err, ErrOverloaded) }

// IsInvalidRequest reports whether err indicates a payload rejected at admission.
func IsInvalidRequest(err error) bool { return errors.Is(err, ErrInvalidRequest) }

// IsBackendFailure reports whether err is a batch-wide backend failure.
func IsBackendFailure(err error) bool { return errors.Is(err, ErrBackendFailure) }

// IsCancelled reports whether the caller withdrew before resolution.
func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }

// IsClosed reports whether the batcher no longer admits requests.
func IsClosed(err error) bool { return errors.Is(err, ErrClosed) }
