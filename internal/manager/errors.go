package manager

import (
	"errors"

	"batchd/internal/batcher"
)

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool { return batcher.IsOverloaded(err) }

// modelNotFoundError is returned when a requested model id is not present in the registry.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for a model id missing from the registry.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var target modelNotFoundError
	return errors.As(err, &target)
}

// dependencyUnavailableError signals a missing external dependency (no
// backend configured, backend not ready) so the HTTP layer can return 503
// Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var target dependencyUnavailableError
	return errors.As(err, &target)
}

// IsUnavailable reports whether the request could not be served because the
// manager or the target batcher is shutting down, or a dependency is missing.
func IsUnavailable(err error) bool {
	return batcher.IsClosed(err) || IsDependencyUnavailable(err)
}

// IsInvalidRequest reports whether err indicates a malformed payload (return 400).
func IsInvalidRequest(err error) bool { return batcher.IsInvalidRequest(err) }

// IsBackendFailure reports whether the batch carrying the request failed (return 502).
func IsBackendFailure(err error) bool { return batcher.IsBackendFailure(err) }

// IsCancelled reports whether the caller gave up before its result arrived (return 504).
func IsCancelled(err error) bool { return batcher.IsCancelled(err) }
