package client

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/dataservice-go/dataservice/internal/testutil"
	"github.com/dataservice-go/dataservice/pkg/model"
)

func nop(resp *model.Response) any { return nil }

func newTestTransport(timeout time.Duration) *HTTPTransport {
	cfg := DefaultTransportConfig()
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return NewHTTPTransport(cfg)
}

func TestFetchText(t *testing.T) {
	origin := testutil.NewOrigin()
	defer origin.Close()

	req := model.NewRequest(origin.URL("/page"), nop)
	resp, err := newTestTransport(0).Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if _, ok := resp.Text(); !ok {
		t.Error("text payload not a string")
	}
	if resp.Request != req {
		t.Error("response does not reference its request")
	}
}

func TestFetchJSON(t *testing.T) {
	origin := testutil.NewOrigin()
	defer origin.Close()
	origin.Script("/api", testutil.ScriptedResponse{
		StatusCode: 200,
		Body:       `{"items": [{"name": "a"}], "pages": 3}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	req := model.NewRequest(origin.URL("/api"), nop)
	req.Method = model.MethodPost
	req.ContentType = model.ContentTypeJSON
	req.JSONData = map[string]any{"q": "all"}

	resp, err := newTestTransport(0).Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	obj, ok := resp.JSON()
	if !ok {
		t.Fatalf("payload is %T, want decoded JSON object", resp.Data)
	}
	if pages, _ := obj["pages"].(float64); pages != 3 {
		t.Errorf("pages = %v, want 3", obj["pages"])
	}
}

func TestFetchQueryParams(t *testing.T) {
	origin := testutil.NewOrigin()
	defer origin.Close()

	req := model.NewRequest(origin.URL("/search?lang=en"), nop)
	req.Params = map[string]string{"page": "2"}

	httpReq, err := newTestTransport(0).buildRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("buildRequest() error = %v", err)
	}
	q := httpReq.URL.Query()
	if q.Get("lang") != "en" || q.Get("page") != "2" {
		t.Errorf("query = %q, want lang=en and page=2", httpReq.URL.RawQuery)
	}
}

func TestFetchFormBody(t *testing.T) {
	req := model.NewRequest("https://example.com/submit", nop)
	req.Method = model.MethodPost
	req.FormData = map[string]string{"q": "books", "page": "1"}

	httpReq, err := newTestTransport(0).buildRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("buildRequest() error = %v", err)
	}
	if ct := httpReq.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", ct)
	}
	if err := httpReq.ParseForm(); err != nil {
		t.Fatalf("ParseForm() error = %v", err)
	}
	want := url.Values{"q": {"books"}, "page": {"1"}}
	if httpReq.PostForm.Encode() != want.Encode() {
		t.Errorf("form = %q, want %q", httpReq.PostForm.Encode(), want.Encode())
	}
}

func TestFetchClientError(t *testing.T) {
	origin := testutil.NewOrigin()
	defer origin.Close()
	origin.Script("/missing", testutil.ScriptedResponse{StatusCode: 404, Body: "not here"})

	req := model.NewRequest(origin.URL("/missing"), nop)
	_, err := newTestTransport(0).Fetch(context.Background(), req)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Fetch() error = %v, want *FetchError", err)
	}
	if fetchErr.Kind != FailureFatal {
		t.Errorf("kind = %q, want fatal", fetchErr.Kind)
	}
	if fetchErr.Response == nil || fetchErr.Response.StatusCode != 404 {
		t.Error("degraded response missing from client error")
	}
}

func TestFetchServerError(t *testing.T) {
	origin := testutil.NewOrigin()
	defer origin.Close()
	origin.Script("/down", testutil.ScriptedResponse{StatusCode: 503, Body: "maintenance"})

	req := model.NewRequest(origin.URL("/down"), nop)
	_, err := newTestTransport(0).Fetch(context.Background(), req)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Fetch() error = %v, want *FetchError", err)
	}
	if fetchErr.Kind != FailureRetryable {
		t.Errorf("kind = %q, want retryable", fetchErr.Kind)
	}
}

func TestFetchRateLimited(t *testing.T) {
	origin := testutil.NewOrigin()
	defer origin.Close()
	origin.Script("/busy", testutil.ScriptedResponse{StatusCode: 429, Body: "slow down"})

	req := model.NewRequest(origin.URL("/busy"), nop)
	_, err := newTestTransport(0).Fetch(context.Background(), req)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Kind != FailureRetryable {
		t.Fatalf("Fetch() error = %v, want retryable FetchError", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	origin := testutil.NewOrigin()
	defer origin.Close()
	origin.Script("/slow", testutil.ScriptedResponse{StatusCode: 200, Body: "late", Delay: 200 * time.Millisecond})

	req := model.NewRequest(origin.URL("/slow"), nop)
	_, err := newTestTransport(20 * time.Millisecond).Fetch(context.Background(), req)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Fetch() error = %v, want *FetchError", err)
	}
	if fetchErr.Kind != FailureTimeout {
		t.Errorf("kind = %q, want timeout", fetchErr.Kind)
	}
}

func TestFetchRetryIntegration(t *testing.T) {
	// Two 500s then success: the retry wrapper reaches the origin three
	// times and hands back the successful payload.
	origin := testutil.NewOrigin()
	defer origin.Close()
	origin.Script("/flaky",
		testutil.ScriptedResponse{StatusCode: 500, Body: "boom"},
		testutil.ScriptedResponse{StatusCode: 500, Body: "boom"},
		testutil.ScriptedResponse{StatusCode: 200, Body: "recovered"},
	)

	req := model.NewRequest(origin.URL("/flaky"), nop)
	resp, err := HandleRequest(context.Background(), newTestTransport(0), req, RetryConfig{MaxAttempts: 3, BackoffMultiplier: 2.0})
	if err != nil {
		t.Fatalf("HandleRequest() error = %v", err)
	}
	if data, _ := resp.Text(); data != "recovered" {
		t.Errorf("payload = %q, want %q", data, "recovered")
	}
	if origin.Hits("/flaky") != 3 {
		t.Errorf("origin hits = %d, want 3", origin.Hits("/flaky"))
	}
}
