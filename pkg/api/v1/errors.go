// Package v1 holds the error taxonomy shared by every brain transport.
//
// Core packages wrap these sentinels with context; transports map them to
// protocol errors with errors.Is.
package v1

import "errors"

// Error classes.
var (
	// ErrValidation is bad input. Never retried; message surfaced verbatim.
	ErrValidation = errors.New("validation error")

	// ErrForbidden is an authorization failure. Surfaced as a generic denial.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound covers absent resources and private memories the caller
	// cannot see, so the two are indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrEmbeddingUnavailable means the embedding provider failed.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrTimeout means an embedding or index call exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrIndexUnavailable means the vector index is down or failing.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrConflict means a compare-and-set lost to a concurrent writer.
	ErrConflict = errors.New("concurrent modification")
)

// Retryable reports whether err belongs to a class the caller may retry
// with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrIndexUnavailable) ||
		errors.Is(err, ErrConflict)
}

// Code returns a short stable identifier for err's class, or "internal".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrIndexUnavailable):
		return "index_unavailable"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// Message returns the text a transport may show the caller for err.
// Forbidden and unclassified errors collapse to their class name so no
// detail about other users' records leaks.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrForbidden):
		return ErrForbidden.Error()
	case Code(err) == "internal":
		return "internal error"
	default:
		return err.Error()
	}
}
