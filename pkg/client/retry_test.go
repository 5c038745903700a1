package client

import (
	"context"
	"errors"
	"testing"

	"github.com/dataservice-go/dataservice/pkg/model"
)

// scriptedTransport returns its outcomes in order; the test fails if more
// fetches arrive than were scripted.
type scriptedTransport struct {
	t        *testing.T
	outcomes []outcome
	calls    int
}

type outcome struct {
	resp *model.Response
	err  error
}

func (s *scriptedTransport) Fetch(ctx context.Context, req *model.Request) (*model.Response, error) {
	if s.calls >= len(s.outcomes) {
		s.t.Fatalf("unexpected fetch attempt %d", s.calls+1)
	}
	out := s.outcomes[s.calls]
	s.calls++
	return out.resp, out.err
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BackoffMultiplier: 2.0}
}

func retryableFailure(req *model.Request, status int) outcome {
	return outcome{err: &FetchError{
		Kind:       FailureRetryable,
		StatusCode: status,
		Message:    "server error",
		Response:   &model.Response{Request: req, StatusCode: status},
	}}
}

func TestHandleRequestSuccessAfterRetries(t *testing.T) {
	req := model.NewRequest("https://example.com/flaky", func(resp *model.Response) any { return nil })
	want := &model.Response{Request: req, Data: "ok", StatusCode: 200}
	transport := &scriptedTransport{t: t, outcomes: []outcome{
		retryableFailure(req, 500),
		retryableFailure(req, 500),
		{resp: want},
	}}

	got, err := HandleRequest(context.Background(), transport, req, fastRetry())
	if err != nil {
		t.Fatalf("HandleRequest() error = %v", err)
	}
	if got != want {
		t.Error("HandleRequest() did not return the successful response")
	}
	if transport.calls != 3 {
		t.Errorf("fetch attempts = %d, want 3", transport.calls)
	}
}

func TestHandleRequestExhaustionReturnsDegradedResponse(t *testing.T) {
	req := model.NewRequest("https://example.com/down", func(resp *model.Response) any { return nil })
	transport := &scriptedTransport{t: t, outcomes: []outcome{
		retryableFailure(req, 500),
		retryableFailure(req, 500),
		retryableFailure(req, 500),
	}}

	got, err := HandleRequest(context.Background(), transport, req, fastRetry())
	if err != nil {
		t.Fatalf("HandleRequest() error = %v, want degraded response", err)
	}
	if got.StatusCode != 500 {
		t.Errorf("degraded response status = %d, want 500", got.StatusCode)
	}
	if transport.calls != 3 {
		t.Errorf("fetch attempts = %d, want 3", transport.calls)
	}
}

func TestHandleRequestExhaustionWithoutResponse(t *testing.T) {
	req := model.NewRequest("https://example.com/unreachable", func(resp *model.Response) any { return nil })
	connRefused := outcome{err: &FetchError{Kind: FailureRetryable, Message: "request failed", Err: errors.New("connection refused")}}
	transport := &scriptedTransport{t: t, outcomes: []outcome{connRefused, connRefused, connRefused}}

	_, err := HandleRequest(context.Background(), transport, req, fastRetry())
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("HandleRequest() error = %v, want ErrRetryExhausted", err)
	}
	if transport.calls != 3 {
		t.Errorf("fetch attempts = %d, want 3", transport.calls)
	}
}

func TestHandleRequestFatalStopsImmediately(t *testing.T) {
	req := model.NewRequest("https://example.com/missing", func(resp *model.Response) any { return nil })
	transport := &scriptedTransport{t: t, outcomes: []outcome{
		{err: &FetchError{Kind: FailureFatal, StatusCode: 404, Message: "not found"}},
	}}

	_, err := HandleRequest(context.Background(), transport, req, fastRetry())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Kind != FailureFatal {
		t.Fatalf("HandleRequest() error = %v, want fatal FetchError", err)
	}
	if transport.calls != 1 {
		t.Errorf("fetch attempts = %d, want 1", transport.calls)
	}
}

func TestHandleRequestTimeoutNotRetried(t *testing.T) {
	req := model.NewRequest("https://example.com/slow", func(resp *model.Response) any { return nil })
	transport := &scriptedTransport{t: t, outcomes: []outcome{
		{err: &FetchError{Kind: FailureTimeout, Message: "deadline exceeded"}},
	}}

	_, err := HandleRequest(context.Background(), transport, req, fastRetry())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Kind != FailureTimeout {
		t.Fatalf("HandleRequest() error = %v, want timeout FetchError", err)
	}
	if transport.calls != 1 {
		t.Errorf("fetch attempts = %d, want 1", transport.calls)
	}
}

func TestHandleRequestFatalAfterRetryableStops(t *testing.T) {
	// The classifier is consulted after every attempt: a fatal failure on
	// attempt 2 stops retrying even though the ceiling was not reached.
	req := model.NewRequest("https://example.com/mixed", func(resp *model.Response) any { return nil })
	transport := &scriptedTransport{t: t, outcomes: []outcome{
		retryableFailure(req, 503),
		{err: &FetchError{Kind: FailureFatal, StatusCode: 400, Message: "bad request"}},
	}}

	_, err := HandleRequest(context.Background(), transport, req, fastRetry())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Kind != FailureFatal {
		t.Fatalf("HandleRequest() error = %v, want fatal FetchError", err)
	}
	if transport.calls != 2 {
		t.Errorf("fetch attempts = %d, want 2", transport.calls)
	}
}

func TestHandleRequestPerRequestTransport(t *testing.T) {
	bound := &scriptedTransport{t: t, outcomes: []outcome{
		{resp: &model.Response{Data: "bound", StatusCode: 200}},
	}}
	fallback := &scriptedTransport{t: t}

	req := model.NewRequest("https://example.com/", func(resp *model.Response) any { return nil })
	req.Client = bound

	got, err := HandleRequest(context.Background(), fallback, req, fastRetry())
	if err != nil {
		t.Fatalf("HandleRequest() error = %v", err)
	}
	if data, _ := got.Text(); data != "bound" {
		t.Error("request-bound transport was not used")
	}
	if fallback.calls != 0 {
		t.Error("fallback transport was invoked despite per-request binding")
	}
}
