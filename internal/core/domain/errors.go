package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain errors represent pipeline failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates a configuration value is out of range or unknown.
	ErrInvalidConfig = errors.New("invalid configuration")

	// Input Errors.

	// ErrUnsupportedFormat indicates the declared document type is not pdf, docx, markdown or text.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCorruptInput indicates extraction produced no text from non-empty input.
	ErrCorruptInput = errors.New("corrupt input")

	// Pipeline Errors.

	// ErrInvalidChunkConfig indicates the chunk size and overlap cannot make progress.
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

	// ErrDimensionMismatch indicates a vector does not match the expected dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingUnavailable indicates the embedding service failed after all retries.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmptyCollection indicates a search ran against a collection with no records.
	// Callers treat it as "no context available", not as a fatal error.
	ErrEmptyCollection = errors.New("collection is empty")

	// ErrGenerationUnavailable indicates the generation service failed after all retries.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrServiceTransient marks a network failure worth retrying
	// (connection error, 5xx, 429, timeout).
	ErrServiceTransient = errors.New("transient service error")
)

// DimensionMismatchError reports the expected and observed vector lengths.
// It matches ErrDimensionMismatch with errors.Is.
type DimensionMismatchError struct {
	// Scope names what fixed the expected dimension (a model or a collection).
	Scope string

	// Expected is the dimension fixed by the first observation.
	Expected int

	// Got is the offending dimension.
	Got int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: %s expects %d dimensions, got %d",
		ErrDimensionMismatch, e.Scope, e.Expected, e.Got)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// EmbeddingFailure identifies the texts an embedding call could not produce
// vectors for. It matches ErrEmbeddingUnavailable and the underlying cause.
type EmbeddingFailure struct {
	// Offset is the index of the first failed text in the caller's input.
	Offset int

	// Count is the number of texts in the failed batch.
	Count int

	// Attempts is how many calls were made before giving up.
	Attempts int

	// Err is the last error returned by the service.
	Err error
}

func (e *EmbeddingFailure) Error() string {
	return fmt.Sprintf("%s: texts [%d, %d) failed after %d attempt(s): %v",
		ErrEmbeddingUnavailable, e.Offset, e.Offset+e.Count, e.Attempts, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *EmbeddingFailure) Unwrap() []error {
	return []error{ErrEmbeddingUnavailable, e.Err}
}

// RateLimitError reports a 429 from a model service. It is transient.
type RateLimitError struct {
	// RetryAfter is the delay the service asked for, or 0 if it gave none.
	RetryAfter time.Duration

	// Err is the underlying response error.
	Err error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

// Unwrap exposes the transient sentinel and the cause.
func (e *RateLimitError) Unwrap() []error {
	return []error{ErrServiceTransient, e.Err}
}

// ErrorKind groups failures by who has to act on them.
type ErrorKind int

// Error kinds.
const (
	// ErrorKindUnknown is anything not covered below.
	ErrorKindUnknown ErrorKind = iota

	// ErrorKindInput means the uploaded document or request must be fixed.
	ErrorKindInput

	// ErrorKindConfig means the operator must fix settings or the collection.
	ErrorKindConfig

	// ErrorKindTransient means a service is unreachable; retry later.
	ErrorKindTransient

	// ErrorKindNoContext means nothing relevant is stored yet.
	ErrorKindNoContext
)

// String returns the string representation.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindInput:
		return "input"
	case ErrorKindConfig:
		return "config"
	case ErrorKindTransient:
		return "transient"
	case ErrorKindNoContext:
		return "no_context"
	default:
		return "unknown"
	}
}

// Hint returns a short remediation message for the kind.
func (k ErrorKind) Hint() string {
	switch k {
	case ErrorKindInput:
		return "Check the document or request and try again."
	case ErrorKindConfig:
		return "Check your settings with 'ragdesk settings show'."
	case ErrorKindTransient:
		return "The model service is unavailable. Try again later."
	case ErrorKindNoContext:
		return "Nothing has been ingested yet. Add documents with 'ragdesk ingest'."
	default:
		return ""
	}
}

// Classify maps an error onto an ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindUnknown
	case errors.Is(err, ErrEmptyCollection):
		return ErrorKindNoContext
	case errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrCorruptInput),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNotFound):
		return ErrorKindInput
	case errors.Is(err, ErrInvalidChunkConfig),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrDimensionMismatch):
		return ErrorKindConfig
	case errors.Is(err, ErrEmbeddingUnavailable),
		errors.Is(err, ErrGenerationUnavailable),
		errors.Is(err, ErrServiceTransient),
		errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTransient
	default:
		return ErrorKindUnknown
	}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrServiceTransient) || errors.Is(err, context.DeadlineExceeded)
}
