package client

import (
	"context"
	"errors"
	"net"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FailureKind
	}{
		{status: 429, want: FailureRetryable},
		{status: 500, want: FailureRetryable},
		{status: 502, want: FailureRetryable},
		{status: 503, want: FailureRetryable},
		{status: 400, want: FailureFatal},
		{status: 401, want: FailureFatal},
		{status: 403, want: FailureFatal},
		{status: 404, want: FailureFatal},
		{status: 418, want: FailureFatal},
	}

	for _, tt := range tests {
		if got := ClassifyStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestClassifyNetError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: FailureTimeout,
		},
		{
			name: "net timeout",
			err:  &net.DNSError{Err: "lookup timed out", IsTimeout: true},
			want: FailureTimeout,
		},
		{
			name: "connection refused",
			err:  &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			want: FailureRetryable,
		},
		{
			name: "generic error",
			err:  errors.New("malformed request"),
			want: FailureFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyNetError(tt.err); got != tt.want {
				t.Errorf("ClassifyNetError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchError(t *testing.T) {
	inner := errors.New("boom")
	err := &FetchError{Kind: FailureFatal, StatusCode: 400, Message: "bad request", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("Unwrap lost the inner error")
	}
	if err.Retryable() {
		t.Error("fatal error reported retryable")
	}
	if (&FetchError{Kind: FailureRetryable}).Retryable() == false {
		t.Error("retryable error not reported retryable")
	}
	if err.Error() == "" {
		t.Error("empty error string")
	}
}
