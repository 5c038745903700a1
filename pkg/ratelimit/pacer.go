// Package ratelimit provides an in-memory politeness gate that spaces
// outgoing fetches by a minimum interval shared across all workers.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// jitterFraction randomizes each interval by ±20% so request timing does
// not form a detectable pattern against the origin.
const jitterFraction = 0.2

// Pacer hands out fetch slots no closer together than the configured
// interval. A nil or zero-interval Pacer never blocks.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewPacer creates a pacer with the given minimum inter-request interval.
// A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Wait blocks until the caller may fetch, or until the context is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.interval <= 0 {
		return nil
	}

	p.mu.Lock()
	now := time.Now()
	step := jittered(p.interval)
	var wait time.Duration
	if p.next.Before(now) {
		p.next = now.Add(step)
	} else {
		wait = p.next.Sub(now)
		p.next = p.next.Add(step)
	}
	p.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func jittered(d time.Duration) time.Duration {
	spread := 1 - jitterFraction + 2*jitterFraction*rand.Float64()
	return time.Duration(float64(d) * spread)
}
