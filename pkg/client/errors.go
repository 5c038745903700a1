package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/dataservice-go/dataservice/pkg/model"
)

// FailureKind is the three-way classification of a failed fetch attempt.
// It is carried on FetchError so retry policy never has to inspect an
// error hierarchy.
type FailureKind string

const (
	// FailureRetryable covers server errors (5xx), rate limiting (429) and
	// connection-level failures. Retried up to the attempt ceiling.
	FailureRetryable FailureKind = "retryable"

	// FailureTimeout covers fetch attempts that exceeded the transport
	// deadline. Never retried.
	FailureTimeout FailureKind = "timeout"

	// FailureFatal covers client errors (4xx other than 429), malformed
	// requests and other transport errors. Never retried.
	FailureFatal FailureKind = "fatal"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when every attempt failed and no
	// degraded response is available to hand back.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during
	// retry backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// FetchError is the explicit failure result of one fetch attempt. Transport
// implementations return it in place of bare errors so the retry wrapper
// can dispatch on Kind.
type FetchError struct {
	Kind       FailureKind
	StatusCode int
	Message    string

	// Response carries the degraded response for HTTP-level failures, so
	// retry exhaustion can return the last result instead of an error.
	Response *model.Response

	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s error (status %d): %s: %v",
			e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s error (status %d): %s",
		e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure may be attempted again.
func (e *FetchError) Retryable() bool {
	return e.Kind == FailureRetryable
}

// ClassifyStatus maps an HTTP error status to a failure kind.
func ClassifyStatus(status int) FailureKind {
	switch {
	case status == http.StatusTooManyRequests:
		return FailureRetryable
	case status >= 500:
		return FailureRetryable
	default:
		return FailureFatal
	}
}

// ClassifyNetError maps a connection-level error to a failure kind.
// Deadline overruns are timeouts, other network failures are retryable,
// anything else is fatal.
func ClassifyNetError(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailureTimeout
		}
		return FailureRetryable
	}
	return FailureFatal
}
