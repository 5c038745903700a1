package dedup

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dataservice-go/dataservice/pkg/model"
)

// Prometheus metrics for deduplication.
var (
	admittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dataservice_dedup_admitted_total",
		Help: "Total newly admitted requests",
	})

	duplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dataservice_dedup_duplicates_total",
		Help: "Total suppressed duplicate requests",
	})
)

// Deduplicator gates request admission on previously seen fingerprints.
// Safe for concurrent use: check-and-insert is atomic, so two requests with
// the same fingerprint arriving concurrently admit exactly one.
type Deduplicator struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	enabled bool
	fields  []string
}

// New creates a deduplicator. When disabled it admits everything and holds
// no state. Nil fields default to URL-only fingerprints.
func New(enabled bool, fields []string) *Deduplicator {
	d := &Deduplicator{enabled: enabled, fields: fields}
	if enabled {
		d.seen = make(map[string]struct{})
	}
	return d
}

// Admit reports whether req is newly admitted (true) or a known duplicate
// (false).
func (d *Deduplicator) Admit(req *model.Request) bool {
	if !d.enabled {
		return true
	}
	key := Fingerprint(req, d.fields)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.seen[key]; dup {
		duplicatesTotal.Inc()
		return false
	}
	d.seen[key] = struct{}{}
	admittedTotal.Inc()
	return true
}

// Len returns the number of distinct fingerprints admitted so far.
func (d *Deduplicator) Len() int {
	if !d.enabled {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
