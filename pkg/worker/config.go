package worker

import (
	"fmt"
	"time"

	"github.com/dataservice-go/dataservice/pkg/client"
	"github.com/dataservice-go/dataservice/pkg/dedup"
	"github.com/dataservice-go/dataservice/pkg/model"
)

// Config controls one scheduler run. It is constructed once, validated at
// pool creation, and never mutated afterwards; every worker reads the same
// value.
type Config struct {
	// MaxWorkers is the degree of concurrent fetch cycles. Must be positive.
	MaxWorkers int

	// Deduplication enables duplicate-request suppression.
	Deduplication bool

	// DeduplicationKeys names the request fields contributing to the
	// fingerprint (url, method, params, form_data, json_data). Empty means
	// URL only.
	DeduplicationKeys []string

	// Retry configures the retry-wrapped fetch.
	Retry client.RetryConfig

	// RequestInterval is the minimum spacing between fetches across all
	// workers. Zero disables pacing.
	RequestInterval time.Duration

	// Transport is the default fetch capability. Nil selects an HTTP
	// transport with default settings. A request's own Client overrides it.
	Transport model.Transport
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:    5,
		Deduplication: true,
		Retry:         client.DefaultRetryConfig(),
	}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive (got %d)", c.MaxWorkers)
	}
	for _, field := range c.DeduplicationKeys {
		if !dedup.ValidField(field) {
			return fmt.Errorf("unknown deduplication key %q", field)
		}
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max_attempts must be positive (got %d)", c.Retry.MaxAttempts)
	}
	return nil
}
