// Package client provides the HTTP transport, the failure taxonomy for
// fetch attempts, and the retry-wrapped fetch used by the scheduler.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/dataservice-go/dataservice/pkg/logging"
	"github.com/dataservice-go/dataservice/pkg/model"
)

// Prometheus metrics for transport operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataservice_requests_total",
		Help: "Total fetch attempts by HTTP status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dataservice_request_duration_seconds",
		Help:    "Fetch attempt duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataservice_fetch_errors_total",
		Help: "Total failed fetch attempts by failure kind",
	}, []string{"kind"})
)

// TransportConfig holds the HTTP transport configuration.
type TransportConfig struct {
	// Timeout bounds a single fetch attempt. Overruns classify as Timeout.
	Timeout time.Duration

	// UserAgent is sent on every request.
	UserAgent string

	// MaxBodyBytes limits how much of a response body is read.
	MaxBodyBytes int64
}

// DefaultTransportConfig returns a safe default configuration.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Timeout:      30 * time.Second,
		UserAgent:    "dataservice/1.0",
		MaxBodyBytes: 10 * 1024 * 1024,
	}
}

// HTTPTransport fetches requests over net/http and translates transport
// failures into the FailureKind taxonomy.
type HTTPTransport struct {
	httpClient *http.Client
	config     TransportConfig
	logger     zerolog.Logger
}

// NewHTTPTransport creates an HTTP transport.
func NewHTTPTransport(cfg TransportConfig) *HTTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 * 1024 * 1024
	}
	return &HTTPTransport{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logging.NewLogger("transport"),
	}
}

// Fetch performs a single fetch attempt. HTTP error statuses and
// connection-level failures come back as *FetchError; success returns the
// decoded response.
func (t *HTTPTransport) Fetch(ctx context.Context, req *model.Request) (*model.Response, error) {
	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	httpReq, err := t.buildRequest(ctx, req)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(FailureFatal)).Inc()
		return nil, &FetchError{Kind: FailureFatal, Message: "build request", Err: err}
	}

	t.logger.Debug().
		Str("request_id", req.ID).
		Str("method", string(req.Method)).
		Str("url", req.URL).
		Msg("Fetching")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		kind := ClassifyNetError(err)
		fetchErrorsTotal.WithLabelValues(string(kind)).Inc()
		t.logger.Warn().
			Err(err).
			Str("url", req.URL).
			Str("kind", string(kind)).
			Msg("Fetch attempt failed")
		return nil, &FetchError{Kind: kind, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.config.MaxBodyBytes))
	if err != nil {
		kind := ClassifyNetError(err)
		fetchErrorsTotal.WithLabelValues(string(kind)).Inc()
		return nil, &FetchError{Kind: kind, StatusCode: resp.StatusCode, Message: "read body", Err: err}
	}

	requestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		kind := ClassifyStatus(resp.StatusCode)
		fetchErrorsTotal.WithLabelValues(string(kind)).Inc()
		return nil, &FetchError{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
			Response: &model.Response{
				Request:    req,
				Data:       string(body),
				StatusCode: resp.StatusCode,
				Headers:    resp.Header,
			},
		}
	}

	data, err := decodeBody(req.ContentType, body)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(FailureFatal)).Inc()
		return nil, &FetchError{Kind: FailureFatal, StatusCode: resp.StatusCode, Message: "decode body", Err: err}
	}

	return &model.Response{
		Request:    req,
		Data:       data,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
	}, nil
}

// buildRequest assembles the outgoing http.Request: query params merged
// into the URL, form or JSON body for POST, headers and User-Agent set.
func (t *HTTPTransport) buildRequest(ctx context.Context, req *model.Request) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", req.URL, err)
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for k, v := range req.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	contentType := ""
	if req.Method == model.MethodPost {
		switch {
		case len(req.JSONData) > 0:
			b, err := json.Marshal(req.JSONData)
			if err != nil {
				return nil, fmt.Errorf("encode json body: %w", err)
			}
			body = bytes.NewReader(b)
			contentType = "application/json"
		case len(req.FormData) > 0:
			form := url.Values{}
			for k, v := range req.FormData {
				form.Set(k, v)
			}
			body = strings.NewReader(form.Encode())
			contentType = "application/x-www-form-urlencoded"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if t.config.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", t.config.UserAgent)
	}
	return httpReq, nil
}

// decodeBody interprets the payload per the request's content type.
func decodeBody(ct model.ContentType, body []byte) (any, error) {
	switch ct {
	case model.ContentTypeJSON:
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("decode json payload: %w", err)
		}
		return v, nil
	default:
		return string(body), nil
	}
}
