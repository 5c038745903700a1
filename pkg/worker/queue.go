package worker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for queue state.
var (
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dataservice_work_queue_depth",
		Help: "Items waiting in the work queue",
	})

	inFlightItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dataservice_in_flight_items",
		Help: "Work items currently being processed",
	})
)

// workQueue is an unbounded multi-producer multi-consumer queue with
// quiescence detection. Next blocks while the queue is momentarily empty
// but other workers are mid-item, and returns false only once the queue is
// empty AND nothing is in flight. The in-flight counter changes under the
// same lock as the item slice, which closes the race where emptiness is
// observed while another worker is about to enqueue follow-up work.
type workQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []any
	inFlight int
	closed   bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item and wakes one waiting worker.
func (q *workQueue) Push(item any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, item)
	queueDepth.Set(float64(len(q.items)))
	q.cond.Signal()
}

// Next blocks for the next work item. The second return is false when the
// run has quiesced or the queue was closed. On success the item is counted
// in flight until the matching Done call.
func (q *workQueue) Next() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.closed && len(q.items) == 0 {
		if q.inFlight == 0 {
			// Quiescence: wake every other waiter so the pool winds down.
			q.cond.Broadcast()
			return nil, false
		}
		q.cond.Wait()
	}
	if q.closed {
		q.cond.Broadcast()
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.inFlight++
	queueDepth.Set(float64(len(q.items)))
	inFlightItems.Set(float64(q.inFlight))
	return item, true
}

// Done marks the current item fully processed, all follow-up work already
// pushed. Must be called exactly once per successful Next.
func (q *workQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inFlight--
	inFlightItems.Set(float64(q.inFlight))
	if q.inFlight == 0 && len(q.items) == 0 {
		q.cond.Broadcast()
	}
}

// Close aborts the run, waking all workers. Pending items are discarded.
func (q *workQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.items = nil
	queueDepth.Set(0)
	q.cond.Broadcast()
}

// dataQueue accumulates the records callbacks produce. Arrival order across
// workers is unspecified; no record is lost or duplicated.
type dataQueue struct {
	mu    sync.Mutex
	items []any
}

// Append adds a record.
func (q *dataQueue) Append(item any) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Drain returns all accumulated records. Called after the pool has stopped.
func (q *dataQueue) Drain() []any {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
