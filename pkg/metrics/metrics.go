// Package metrics documents the Prometheus metrics exported by the
// scheduler. All metrics are defined next to the code they observe (client,
// dedup, worker) via promauto; this package only exposes the registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer used by the library.
var Registry = prometheus.DefaultRegisterer

// Metrics Reference
//
// Transport (pkg/client):
//   - dataservice_requests_total{status} (Counter): fetch attempts by HTTP status
//   - dataservice_request_duration_seconds (Histogram): fetch attempt duration
//   - dataservice_fetch_errors_total{kind} (Counter): failed attempts by failure kind
//
// Retry (pkg/client):
//   - dataservice_retries_total{kind} (Counter): retry attempts by failure kind
//   - dataservice_retry_exhausted_total (Counter): requests that hit the retry ceiling
//
// Deduplication (pkg/dedup):
//   - dataservice_dedup_admitted_total (Counter): newly admitted requests
//   - dataservice_dedup_duplicates_total (Counter): suppressed duplicate requests
//
// Scheduler (pkg/worker):
//   - dataservice_work_queue_depth (Gauge): items waiting in the work queue
//   - dataservice_in_flight_items (Gauge): items currently being processed
//   - dataservice_data_records_total (Counter): records appended to the data queue
//   - dataservice_item_failures_total (Counter): work items that failed
//
// Example queries:
//
//   # Duplicate suppression rate
//   rate(dataservice_dedup_duplicates_total[5m]) /
//   (rate(dataservice_dedup_admitted_total[5m]) + rate(dataservice_dedup_duplicates_total[5m]))
//
//   # P95 fetch latency
//   histogram_quantile(0.95, rate(dataservice_request_duration_seconds_bucket[5m]))
