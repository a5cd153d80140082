package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for one ingest run.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	PagesVisited    prometheus.Counter
	URLsDiscovered  prometheus.Counter
	FetchErrors     *prometheus.CounterVec
	StageFailures   *prometheus.CounterVec
	RecordsValid    prometheus.Counter
	RetriesTotal    prometheus.Counter
	BatchesFlushed  prometheus.Counter
	UpsertsTotal    *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_requests_total",
			Help: "Total HTTP requests issued by the fetcher.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_request_duration_seconds",
			Help:    "HTTP request latency for page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pagesVisited := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_listing_pages_total",
			Help: "Total catalog listing pages visited during enumeration.",
		},
	)
	urlsDiscovered := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_urls_discovered_total",
			Help: "Total unique book URLs discovered.",
		},
	)
	fetchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_fetch_errors_total",
			Help: "Total fetch failures by category.",
		},
		[]string{"category"},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_stage_failures_total",
			Help: "Total per-URL failures by pipeline stage.",
		},
		[]string{"stage"},
	)
	recordsValid := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_records_validated_total",
			Help: "Total records that passed validation.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_retries_total",
			Help: "Total retry attempts scheduled (fetch and store).",
		},
	)
	batchesFlushed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_batches_flushed_total",
			Help: "Total record batches handed to the sink.",
		},
	)
	upserts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_upserts_total",
			Help: "Total per-record upsert outcomes.",
		},
		[]string{"result"},
	)

	registry.MustRegister(requests, requestDuration, pagesVisited, urlsDiscovered,
		fetchErrors, stageFailures, recordsValid, retries, batchesFlushed, upserts)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		PagesVisited:    pagesVisited,
		URLsDiscovered:  urlsDiscovered,
		FetchErrors:     fetchErrors,
		StageFailures:   stageFailures,
		RecordsValid:    recordsValid,
		RetriesTotal:    retries,
		BatchesFlushed:  batchesFlushed,
		UpsertsTotal:    upserts,
	}
}

// IncRequest increments the requests counter for a phase label.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPagesVisited increments the listing-pages counter.
func (m *Metrics) IncPagesVisited() {
	if m == nil {
		return
	}
	m.PagesVisited.Inc()
}

// IncDiscovered increments the discovered-URLs counter.
func (m *Metrics) IncDiscovered() {
	if m == nil {
		return
	}
	m.URLsDiscovered.Inc()
}

// IncFetchError increments the fetch-errors counter for a category label.
func (m *Metrics) IncFetchError(category string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(category).Inc()
}

// IncStageFailure increments the per-stage failure counter.
func (m *Metrics) IncStageFailure(stage string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage).Inc()
}

// IncValidated increments the validated-records counter.
func (m *Metrics) IncValidated() {
	if m == nil {
		return
	}
	m.RecordsValid.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncBatchFlushed increments the flushed-batches counter.
func (m *Metrics) IncBatchFlushed() {
	if m == nil {
		return
	}
	m.BatchesFlushed.Inc()
}

// IncUpsert increments the upserts counter for a result label.
func (m *Metrics) IncUpsert(result string) {
	if m == nil {
		return
	}
	m.UpsertsTotal.WithLabelValues(result).Inc()
}
