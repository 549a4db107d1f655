package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	// It is the sentinel outcome of a definitively failed logical request;
	// callers must check for it rather than expect a crash.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during
	// a retry backoff.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNotFound is returned by the detail-lookup path on HTTP 404. A 404
	// there means the product number does not exist, not a transient fault,
	// so it is never retried.
	ErrNotFound = errors.New("product not found")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents connection and timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassStatus represents non-2xx HTTP responses.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassNotFound represents a 404 on the detail-lookup path.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassAuth represents a failed credential refresh.
	ErrorClassAuth ErrorClass = "auth"
)

// APIError is a request failure with its HTTP status and classification.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("digikey %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("digikey %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error should be retried.
//
// Network failures and every non-2xx status are retried uniformly; only a
// not-found on the detail path is terminal.
func shouldRetry(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.ErrorClass == ErrorClassNotFound {
		return false
	}
	return true
}
