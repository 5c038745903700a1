package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/dataservice-go/dataservice/pkg/model"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataservice_retries_total",
		Help: "Total retry attempts by failure kind",
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dataservice_retry_exhausted_total",
		Help: "Total requests that exhausted the retry ceiling",
	})
)

// RetryConfig holds the configuration for the retry-wrapped fetch.
type RetryConfig struct {
	// MaxAttempts is the total number of fetch attempts, the initial
	// request included.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff growth.
	MaxBackoff time.Duration

	// BackoffMultiplier is the exponential growth factor.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// HandleRequest performs the retry-wrapped fetch for one request. Attempts
// are strictly sequential and every failed attempt is re-classified: a
// retryable failure is attempted again up to the ceiling, timeout and fatal
// failures stop immediately. When the ceiling is exhausted the last
// degraded response is returned instead of an error, so the pool keeps
// making progress on other items.
//
// A transport bound on the request overrides the supplied default.
func HandleRequest(ctx context.Context, transport model.Transport, req *model.Request, cfg RetryConfig) (*model.Response, error) {
	if req.Client != nil {
		transport = req.Client
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	backoff := cfg.InitialBackoff
	var lastErr *FetchError

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		resp, err := transport.Fetch(ctx, req)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("request_id", req.ID).
					Str("url", req.URL).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return resp, nil
		}

		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			// Transport broke its contract; treat as fatal.
			return nil, &FetchError{Kind: FailureFatal, Message: "unclassified transport error", Err: err}
		}

		if !fetchErr.Retryable() {
			log.Warn().
				Str("request_id", req.ID).
				Str("url", req.URL).
				Str("kind", string(fetchErr.Kind)).
				Int("attempt", attempt).
				Msg("Non-retryable fetch failure")
			return nil, fetchErr
		}

		lastErr = fetchErr
		if attempt >= cfg.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(string(fetchErr.Kind)).Inc()

		// ±20% jitter to avoid thundering herd against the origin.
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		log.Debug().
			Str("request_id", req.ID).
			Str("url", req.URL).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			return nil, &FetchError{
				Kind:    FailureFatal,
				Message: "retry backoff interrupted",
				Err:     fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err()),
			}
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	retryExhaustedTotal.Inc()
	log.Warn().
		Str("request_id", req.ID).
		Str("url", req.URL).
		Int("max_attempts", cfg.MaxAttempts).
		Int("status", lastErr.StatusCode).
		Msg("Retry attempts exhausted")

	if lastErr.Response != nil {
		// Degraded result: the caller sees the last failure status rather
		// than an error.
		return lastErr.Response, nil
	}
	return nil, &FetchError{
		Kind:       FailureRetryable,
		StatusCode: lastErr.StatusCode,
		Message:    "no response obtained",
		Err:        fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, cfg.MaxAttempts, lastErr.Err),
	}
}
