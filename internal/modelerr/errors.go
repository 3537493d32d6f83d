// Package modelerr defines the error kinds shared by the registry, the cache
// and the components layered on top of them. Each kind is a small unexported
// type with a constructor and an IsXxx predicate; predicates see through
// wrapping so callers may add context with fmt.Errorf("...: %w", err).
package modelerr

import (
	"errors"
	"fmt"
)

// notFoundError signals an unknown model id or a missing model file.
type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "model not found: " + e.id }

// ErrNotFound returns an error for a model id (or path) that is not known.
func ErrNotFound(id string) error { return notFoundError{id: id} }

// IsNotFound reports whether err indicates a missing model.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// ioError wraps filesystem and hashing failures.
type ioError struct {
	op   string
	path string
	err  error
}

func (e ioError) Error() string { return fmt.Sprintf("%s %s: %v", e.op, e.path, e.err) }
func (e ioError) Unwrap() error { return e.err }

// ErrIO wraps err with the failed operation and path.
func ErrIO(op, path string, err error) error { return ioError{op: op, path: path, err: err} }

// IsIO reports whether err is a filesystem/hash failure.
func IsIO(err error) bool {
	var e ioError
	return errors.As(err, &e)
}

// loadFailureError carries the loader's own error unchanged.
type loadFailureError struct {
	id  string
	err error
}

func (e loadFailureError) Error() string { return "load " + e.id + ": " + e.err.Error() }
func (e loadFailureError) Unwrap() error { return e.err }

// ErrLoadFailure wraps a loader error for model id. errors.Is/As on the result
// still reach the loader's error.
func ErrLoadFailure(id string, err error) error { return loadFailureError{id: id, err: err} }

// IsLoadFailure reports whether err came from a failed model load.
func IsLoadFailure(err error) bool {
	var e loadFailureError
	return errors.As(err, &e)
}

// capacityExceededError signals that space could not be made for a model.
type capacityExceededError struct {
	id       string
	need     int64
	capacity int64
}

func (e capacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %s needs %d bytes, capacity %d", e.id, e.need, e.capacity)
}

// ErrCapacityExceeded returns an error for a model of need bytes that cannot
// fit in capacity bytes.
func ErrCapacityExceeded(id string, need, capacity int64) error {
	return capacityExceededError{id: id, need: need, capacity: capacity}
}

// IsCapacityExceeded reports whether err indicates the cache could not make room.
func IsCapacityExceeded(err error) bool {
	var e capacityExceededError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing external dependency (e.g., llama.cpp)
// so the HTTP layer can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// ErrClosed is returned by operations on a cache or manager after Close.
var ErrClosed = errors.New("model cache closed")

// IsClosed reports whether err indicates use after Close.
func IsClosed(err error) bool { return errors.Is(err, ErrClosed) }
