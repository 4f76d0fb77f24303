package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrDocumentExists      = errors.New("document already exists")
	ErrShardUnavailable    = errors.New("shard unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrIdempotencyConflict = errors.New("idempotency key already used")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInternal            = errors.New("internal error")
	ErrTimeout             = errors.New("operation timed out")

	// Core taxonomy (spec.md §7): the ehash, kdindex, and iidx packages wrap
	// either one of these four sentinels or one of the core-specific
	// sentinels below. The core-specific sentinels are separate values that
	// do not wrap these four, so errors.Is against one of the four matches
	// only errors raised with that kind directly.
	ErrIo           = errors.New("io error")
	ErrCorrupt      = errors.New("corrupt data")
	ErrInvalid      = errors.New("invalid input")
	ErrNotFoundSoft = errors.New("not found")

	// EHASH
	ErrRecordTooLarge   = errors.New("record too large for bucket")
	ErrBucketOverflow   = errors.New("entry larger than a single bucket")
	ErrDirectoryCorrupt = errors.New("directory invariant violated")
	ErrUnsplittable     = errors.New("bucket cannot be split further")

	// KDINDEX
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrEmptyPointSet     = errors.New("empty point set")

	// IIDX
	ErrMalformedQuery        = errors.New("malformed query")
	ErrNotStrictlyIncreasing = errors.New("doc ids not strictly increasing")
	ErrFormatError           = errors.New("unrecognised index file format")
	ErrTruncated             = errors.New("truncated index file")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDocumentExists), errors.Is(err, ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrShardUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrMalformedQuery), errors.Is(err, ErrDimensionMismatch),
		errors.Is(err, ErrRecordTooLarge), errors.Is(err, ErrNotStrictlyIncreasing),
		errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrCorrupt), errors.Is(err, ErrFormatError), errors.Is(err, ErrTruncated):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}

}

// Wrap annotates err with a human-readable context string while preserving
// errors.Is/As against the sentinel it wraps (or against err itself, if err
// is not one of the core's sentinel kinds).
func Wrap(sentinel error, context string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", context, sentinel)
	}
	return fmt.Errorf("%s: %w: %v", context, sentinel, cause)
}
