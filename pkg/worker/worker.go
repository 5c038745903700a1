// Package worker implements the concurrent crawl scheduler: a bounded pool
// of workers drains a self-feeding work queue until quiescence, routing
// callback output back into the queue or out to the data queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dataservice-go/dataservice/pkg/client"
	"github.com/dataservice-go/dataservice/pkg/dedup"
	"github.com/dataservice-go/dataservice/pkg/logging"
	"github.com/dataservice-go/dataservice/pkg/model"
	"github.com/dataservice-go/dataservice/pkg/ratelimit"
)

// Prometheus metrics for scheduler output.
var (
	dataRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dataservice_data_records_total",
		Help: "Records appended to the data queue",
	})

	itemFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dataservice_item_failures_total",
		Help: "Work items that failed",
	})
)

// Stats summarizes one completed run.
type Stats struct {
	// Requests is the number of fetch cycles performed.
	Requests int64

	// Records is the number of data records produced.
	Records int64

	// Duplicates is the number of suppressed duplicate requests.
	Duplicates int64

	// Failures is the number of failed work items.
	Failures int64

	// Duration is the wall time of the run.
	Duration time.Duration
}

// Result is the outcome of a completed run: the fully drained data queue
// plus every per-item failure, so nothing fails silently.
type Result struct {
	Data     []any
	Failures []*ItemError
	Stats    Stats
}

// Err aggregates the per-item failures into one error, or nil when every
// item succeeded.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Pool runs concurrent fetch-and-dispatch cycles over the work queue.
type Pool struct {
	cfg       Config
	transport model.Transport
	dedup     *dedup.Deduplicator
	pacer     *ratelimit.Pacer
	logger    zerolog.Logger

	queue *workQueue
	data  *dataQueue

	mu       sync.Mutex
	failures []*ItemError

	requests   atomic.Int64
	duplicates atomic.Int64
}

// New creates a pool for one run.
func New(cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	transport := cfg.Transport
	if transport == nil {
		transport = client.NewHTTPTransport(client.DefaultTransportConfig())
	}
	return &Pool{
		cfg:       cfg,
		transport: transport,
		dedup:     dedup.New(cfg.Deduplication, cfg.DeduplicationKeys),
		pacer:     ratelimit.NewPacer(cfg.RequestInterval),
		logger:    logging.NewLogger("worker"),
		queue:     newWorkQueue(),
		data:      &dataQueue{},
	}, nil
}

// Run is the engine entry point: convenience wrapper constructing a pool
// and processing the seeds to quiescence.
func Run(ctx context.Context, seeds []*model.Request, cfg Config) (*Result, error) {
	pool, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return pool.Run(ctx, seeds)
}

// Run admits the seeds and processes work until the queue is empty and no
// worker is mid-item. It fails fast with ErrNoRequests on an empty seed set
// and returns the drained data queue together with per-item failures.
func (p *Pool) Run(ctx context.Context, seeds []*model.Request) (*Result, error) {
	if len(seeds) == 0 {
		return nil, ErrNoRequests
	}

	start := time.Now()
	logger := p.logger.With().Str("run_id", uuid.NewString()).Logger()

	// Validate every seed before any work begins.
	for _, seed := range seeds {
		seed.Normalize()
		if err := seed.Validate(); err != nil {
			return nil, fmt.Errorf("seed request: %w", err)
		}
	}
	for _, seed := range seeds {
		p.admit(logger, seed)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		p.queue.Close()
	}()

	logger.Info().
		Int("seeds", len(seeds)).
		Int("max_workers", p.cfg.MaxWorkers).
		Bool("deduplication", p.cfg.Deduplication).
		Msg("Starting run")

	var g errgroup.Group
	for i := 0; i < p.cfg.MaxWorkers; i++ {
		workerID := i
		g.Go(func() error {
			return p.work(ctx, logger, workerID)
		})
	}
	err := g.Wait()

	result := &Result{
		Data:     p.data.Drain(),
		Failures: p.drainFailures(),
	}
	result.Stats = Stats{
		Requests:   p.requests.Load(),
		Records:    int64(len(result.Data)),
		Duplicates: p.duplicates.Load(),
		Failures:   int64(len(result.Failures)),
		Duration:   time.Since(start),
	}

	logger.Info().
		Int64("requests", result.Stats.Requests).
		Int64("records", result.Stats.Records).
		Int64("duplicates", result.Stats.Duplicates).
		Int64("failures", result.Stats.Failures).
		Dur("duration", result.Stats.Duration).
		Msg("Run complete")

	return result, err
}

// work is one worker's loop: pull, process, mark done, until quiescence.
func (p *Pool) work(ctx context.Context, logger zerolog.Logger, workerID int) error {
	log := logger.With().Int("worker_id", workerID).Logger()
	for {
		item, ok := p.queue.Next()
		if !ok {
			log.Debug().Msg("Worker stopping")
			return ctx.Err()
		}
		p.handleItem(ctx, log, item)
		p.queue.Done()
	}
}

// handleItem routes one work item: requests go through the fetch cycle,
// data records to the data queue, anything else is an input error local to
// the item.
func (p *Pool) handleItem(ctx context.Context, log zerolog.Logger, item any) {
	if req, ok := item.(*model.Request); ok {
		p.handleRequest(ctx, log, req)
		return
	}
	if model.IsDataRecord(item) {
		p.data.Append(item)
		dataRecordsTotal.Inc()
		return
	}
	err := fmt.Errorf("%w %T", ErrUnknownItemType, item)
	log.Error().Err(err).Msg("Dropping unknown work item")
	p.fail(&ItemError{Item: item, Err: err})
}

// handleRequest performs one fetch cycle: paced, retry-wrapped fetch, then
// callback dispatch. The callback is invoked exactly once per obtained
// response, degraded responses after retry exhaustion included; it is not
// invoked for timeout or fatal fetch failures.
func (p *Pool) handleRequest(ctx context.Context, log zerolog.Logger, req *model.Request) {
	if err := p.pacer.Wait(ctx); err != nil {
		p.fail(&ItemError{Request: req, Err: err})
		return
	}

	p.requests.Add(1)
	resp, err := client.HandleRequest(ctx, p.transport, req, p.cfg.Retry)
	if err != nil {
		log.Warn().
			Err(err).
			Str("request_id", req.ID).
			Str("url", req.URL).
			Msg("Request failed")
		p.fail(&ItemError{Request: req, Err: err})
		return
	}

	if !resp.OK() {
		log.Warn().
			Str("request_id", req.ID).
			Str("url", req.URL).
			Int("status", resp.StatusCode).
			Msg("Dispatching degraded response")
	}

	for _, item := range model.NormalizeItems(req.Callback(resp)) {
		p.dispatch(log, item)
	}
}

// dispatch routes one callback-yielded item.
func (p *Pool) dispatch(log zerolog.Logger, item any) {
	switch v := item.(type) {
	case *model.Request:
		v.Normalize()
		if err := v.Validate(); err != nil {
			p.fail(&ItemError{Request: v, Err: err})
			return
		}
		p.admit(log, v)
	default:
		if model.IsDataRecord(item) {
			p.data.Append(item)
			dataRecordsTotal.Inc()
			return
		}
		err := fmt.Errorf("%w %T", ErrUnknownItemType, item)
		log.Error().Err(err).Msg("Callback yielded unknown item")
		p.fail(&ItemError{Item: item, Err: err})
	}
}

// admit routes a request through the deduplicator into the work queue.
func (p *Pool) admit(log zerolog.Logger, req *model.Request) {
	if !p.dedup.Admit(req) {
		p.duplicates.Add(1)
		log.Debug().
			Str("url", req.URL).
			Msg("Suppressed duplicate request")
		return
	}
	p.queue.Push(req)
}

func (p *Pool) fail(ie *ItemError) {
	itemFailuresTotal.Inc()
	p.mu.Lock()
	p.failures = append(p.failures, ie)
	p.mu.Unlock()
}

func (p *Pool) drainFailures() []*ItemError {
	p.mu.Lock()
	defer p.mu.Unlock()
	failures := p.failures
	p.failures = nil
	return failures
}
