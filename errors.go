package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/corvidsearch/retrieval/engine"
	"github.com/corvidsearch/retrieval/hnsw"
)

// Sentinel error kinds per the error-kind taxonomy. Callers use
// errors.Is against these; the wrapped message carries the specific
// detail.
var (
	// ErrValidation covers empty queries, k out of range, unknown
	// filter fields, and dimension mismatches without structured
	// fields.
	ErrValidation = errors.New("retrieval: validation error")

	// ErrEmbeddingFailure is returned when the embedder raised or
	// returned a malformed matrix.
	ErrEmbeddingFailure = errors.New("retrieval: embedding failure")

	// ErrIndexNotReady is returned when a query runs before any build
	// or load has completed.
	ErrIndexNotReady = errors.New("retrieval: index not ready")

	// ErrIndexIO is returned when a snapshot read/write fails.
	ErrIndexIO = errors.New("retrieval: index I/O error")

	// ErrCancelled is returned when a query's context is cancelled
	// before completion.
	ErrCancelled = errors.New("retrieval: cancelled")

	// ErrTimeout is returned when a query exceeds its deadline.
	ErrTimeout = errors.New("retrieval: timeout")

	// ErrInternal covers unanticipated invariant violations.
	ErrInternal = errors.New("retrieval: internal error")
)

// ErrDimensionMismatch indicates a vector's length did not match the
// engine's configured embedding dimension.
//
// The underlying cause, if any, can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// Is reports that ErrDimensionMismatch is a kind of ErrValidation, so
// callers can match either the specific struct (for Expected/Actual) or
// the general sentinel.
func (e *ErrDimensionMismatch) Is(target error) bool {
	return target == ErrValidation
}

// validationErrorf wraps a detail message under ErrValidation.
func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// internalErrorf wraps a detail message under ErrInternal, always
// including the generation id so an operator can correlate a rebuild
// with the failure.
func internalErrorf(generation string, format string, args ...any) error {
	return fmt.Errorf("%w (generation %s): %s", ErrInternal, generation, fmt.Sprintf(format, args...))
}

// translateError normalizes an internal package error into one of the
// public sentinel kinds at the engine boundary. Errors that already
// carry one of the public sentinels pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrValidation) || errors.Is(err, ErrEmbeddingFailure) ||
		errors.Is(err, ErrIndexNotReady) || errors.Is(err, ErrIndexIO) ||
		errors.Is(err, ErrCancelled) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrInternal) {
		return err
	}

	if errors.Is(err, hnsw.ErrDimensionMismatch) {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if errors.Is(err, engine.ErrNotReady) {
		return fmt.Errorf("%w: %s", ErrIndexNotReady, err)
	}
	if errors.Is(err, engine.ErrEmbedding) {
		return fmt.Errorf("%w: %s", ErrEmbeddingFailure, err)
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", ErrCancelled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %s", ErrInternal, err)
}
