package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by sources and middleware.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during
	// a retry backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents malformed response payloads.
	ErrorClassDecode ErrorClass = "decode"
)

// FeedError represents a failed page fetch with additional context.
type FeedError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("feed %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FeedError) Unwrap() error {
	return e.Err
}

// ClassifyStatus categorizes an HTTP status code.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// Classify returns the error class of a fetch error. A FeedError carries its
// own class; everything else counts as a network failure.
func Classify(err error) ErrorClass {
	var fe *FeedError
	if errors.As(err, &fe) {
		return fe.ErrorClass
	}
	return ErrorClassNetwork
}

// retryable determines if an error should be retried based on its
// classification. Context cancellation is never retried.
func retryable(err error, class ErrorClass) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch class {
	case ErrorClassClient:
		// 4xx errors should NOT be retried
		return false
	case ErrorClassDecode:
		// Malformed payloads do not fix themselves
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
