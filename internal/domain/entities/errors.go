package entities

import (
	"errors"
	"fmt"
	"time"
)

// ErrorClass partitions fetch failures by how the pipeline must react to them.
type ErrorClass string

const (
	// ClassTransient covers network timeouts, connection resets and 5xx
	// responses. Retried by the executor.
	ClassTransient ErrorClass = "transient"
	// ClassRateLimited is a provider-reported 429. Retried, honoring the
	// Retry-After hint when present.
	ClassRateLimited ErrorClass = "rate_limited"
	// ClassClientError is any other 4xx: malformed request, bad API key.
	// Never retried.
	ClassClientError ErrorClass = "client_error"
	// ClassMalformed means the response body failed schema validation.
	// Never retried.
	ClassMalformed ErrorClass = "malformed"
	// ClassQuotaExceeded means the local quota budget would be exceeded;
	// no network call was made. Never retried.
	ClassQuotaExceeded ErrorClass = "quota_exceeded"
	// ClassRetriesExhausted tags the last retryable error once the executor
	// has spent all attempts.
	ClassRetriesExhausted ErrorClass = "retries_exhausted"
	// ClassStorageFailure is a batch persistence failure, surfaced as a
	// cycle-level error.
	ClassStorageFailure ErrorClass = "storage_failure"
)

// FetchError carries the error class through the retry executor and the
// orchestrator so that retry policy and cycle reporting stay class-aware.
type FetchError struct {
	Class ErrorClass
	// RetryAfter is the provider-supplied backoff hint, set only for
	// rate_limited errors when the provider sent one.
	RetryAfter time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return string(e.Class)
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewFetchError(class ErrorClass, err error) *FetchError {
	return &FetchError{Class: class, Err: err}
}

// ClassOf extracts the error class, or ClassTransient for errors that never
// went through classification (plain network errors from lower layers).
func ClassOf(err error) ErrorClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ClassTransient
}

// Retryable reports whether the retry executor may attempt the fetch again.
func Retryable(err error) bool {
	switch ClassOf(err) {
	case ClassTransient, ClassRateLimited:
		return true
	default:
		return false
	}
}

// RetryAfterHint returns the provider-supplied delay for rate-limited errors,
// zero otherwise.
func RetryAfterHint(err error) time.Duration {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.RetryAfter
	}
	return 0
}
