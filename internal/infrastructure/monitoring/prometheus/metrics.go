package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPRequestSize     HistogramVec
	HTTPResponseSize    HistogramVec
	HTTPActiveRequests  GaugeVec

	// Ingest Layer
	IngestCompoundsTotal    CounterVec
	IngestDuration          HistogramVec
	IngestVerifyFailures    CounterVec
	IngestQuarantinedTotal  CounterVec
	CompoundStorageSize     GaugeVec
	CompoundTotalCount      GaugeVec

	// Atomize Layer
	AtomizeMoleculesTotal   CounterVec
	AtomizeDuration         HistogramVec
	AtomizeSimHashDropped   CounterVec
	AtomTotalCount          GaugeVec

	// Watcher Layer
	WatcherEventsTotal      CounterVec
	WatcherDebounceDuration HistogramVec
	WatcherPendingEvents    GaugeVec

	// Remote Fetch Layer
	FetchRequestsTotal      CounterVec
	FetchDuration           HistogramVec
	FetchBytesTotal         CounterVec
	FetchRateLimitRemaining GaugeVec

	// Retrieval Layer
	RetrievalRequestsTotal CounterVec
	RetrievalDuration      HistogramVec
	RetrievalResultCount   HistogramVec
	RetrievalAnchorCount   HistogramVec
	RetrievalNeighborCount HistogramVec
	RetrievalCacheHitsTotal CounterVec

	// Graph Layer
	GraphNodesTotal    GaugeVec
	GraphEdgesTotal    GaugeVec
	GraphQueryDuration HistogramVec
	GraphBuildDuration HistogramVec

	// Mirror Layer
	MirrorProjectionsTotal    CounterVec
	MirrorProjectionDuration  HistogramVec

	// Infrastructure Layer
	DBConnectionPoolSize   GaugeVec
	DBConnectionPoolActive GaugeVec
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessageQueueDepth      GaugeVec
	MessageProcessDuration HistogramVec

	// System Health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets   = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultIngestDurationBuckets = []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300}
	DefaultFetchDurationBuckets  = []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120}
	DefaultSizeBuckets           = []float64{100, 1000, 10000, 100000, 1000000, 10000000}
	DefaultDBDurationBuckets     = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultResultCountBuckets    = []float64{0, 1, 5, 10, 20, 50, 100, 500}
)

// NewAppMetrics registers all metrics and returns AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPRequestSize = collector.RegisterHistogram("http_request_size_bytes", "HTTP request size", DefaultSizeBuckets, "method", "path")
	m.HTTPResponseSize = collector.RegisterHistogram("http_response_size_bytes", "HTTP response size", DefaultSizeBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Ingest
	m.IngestCompoundsTotal = collector.RegisterCounter("ingest_compounds_total", "Compound ingestion count", "provenance", "status")
	m.IngestDuration = collector.RegisterHistogram("ingest_duration_seconds", "Compound ingestion duration", DefaultIngestDurationBuckets, "provenance")
	m.IngestVerifyFailures = collector.RegisterCounter("ingest_verify_failures_total", "Read-after-write verification failures", "table")
	m.IngestQuarantinedTotal = collector.RegisterCounter("ingest_quarantined_total", "Molecules quarantined on resync", "reason")
	m.CompoundStorageSize = collector.RegisterGauge("compound_storage_bytes", "Compound storage size", "storage_type")
	m.CompoundTotalCount = collector.RegisterGauge("compound_total_count", "Total compounds", "status")

	// Atomize
	m.AtomizeMoleculesTotal = collector.RegisterCounter("atomize_molecules_total", "Molecules produced by fission", "compound_kind")
	m.AtomizeDuration = collector.RegisterHistogram("atomize_duration_seconds", "Atomization duration", DefaultIngestDurationBuckets, "compound_kind")
	m.AtomizeSimHashDropped = collector.RegisterCounter("atomize_simhash_dropped_total", "Molecules folded as near-duplicates by simhash")
	m.AtomTotalCount = collector.RegisterGauge("atom_total_count", "Total distinct atoms", "")

	// Watcher
	m.WatcherEventsTotal = collector.RegisterCounter("watcher_events_total", "Filesystem watch events observed", "provenance", "op")
	m.WatcherDebounceDuration = collector.RegisterHistogram("watcher_debounce_duration_seconds", "Time spent debouncing a burst of events", DefaultHTTPDurationBuckets)
	m.WatcherPendingEvents = collector.RegisterGauge("watcher_pending_events", "Events queued awaiting debounce flush", "root")

	// Remote fetch
	m.FetchRequestsTotal = collector.RegisterCounter("fetch_requests_total", "GitHub tarball fetch requests", "repo", "status")
	m.FetchDuration = collector.RegisterHistogram("fetch_duration_seconds", "GitHub tarball fetch duration", DefaultFetchDurationBuckets, "repo")
	m.FetchBytesTotal = collector.RegisterCounter("fetch_bytes_total", "Bytes downloaded from GitHub", "repo")
	m.FetchRateLimitRemaining = collector.RegisterGauge("fetch_rate_limit_remaining", "Remaining GitHub API requests in the current window", "")

	// Retrieval
	m.RetrievalRequestsTotal = collector.RegisterCounter("retrieval_requests_total", "Tag-Walker retrieval requests", "status")
	m.RetrievalDuration = collector.RegisterHistogram("retrieval_duration_seconds", "Tag-Walker retrieval duration", DefaultHTTPDurationBuckets, "phase")
	m.RetrievalResultCount = collector.RegisterHistogram("retrieval_result_count", "Molecules returned per retrieval request", DefaultResultCountBuckets)
	m.RetrievalAnchorCount = collector.RegisterHistogram("retrieval_anchor_count", "Molecules contributed by the anchor phase", DefaultResultCountBuckets)
	m.RetrievalNeighborCount = collector.RegisterHistogram("retrieval_neighbor_count", "Molecules contributed by the neighbor-walk phase", DefaultResultCountBuckets)
	m.RetrievalCacheHitsTotal = collector.RegisterCounter("retrieval_cache_hits_total", "Retrieval result cache hits")

	// Graph
	m.GraphNodesTotal = collector.RegisterGauge("graph_nodes_total", "Graph nodes total", "node_type")
	m.GraphEdgesTotal = collector.RegisterGauge("graph_edges_total", "Graph edges total", "edge_type")
	m.GraphQueryDuration = collector.RegisterHistogram("graph_query_duration_seconds", "Graph query duration", DefaultDBDurationBuckets, "query_type")
	m.GraphBuildDuration = collector.RegisterHistogram("graph_build_duration_seconds", "Graph build duration", DefaultIngestDurationBuckets, "operation")

	// Mirror
	m.MirrorProjectionsTotal = collector.RegisterCounter("mirror_projections_total", "Mirror projection runs", "status")
	m.MirrorProjectionDuration = collector.RegisterHistogram("mirror_projection_duration_seconds", "Mirror projection duration", DefaultIngestDurationBuckets)

	// Infrastructure
	m.DBConnectionPoolSize = collector.RegisterGauge("db_pool_size", "Database connection pool size", "db")
	m.DBConnectionPoolActive = collector.RegisterGauge("db_pool_active", "Database active connections", "db")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessageQueueDepth = collector.RegisterGauge("mq_depth", "Message queue depth", "queue")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "queue", "message_type")

	// System Health
	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type", "severity")

	return m
}

// RegisterAppMetrics is an alias for NewAppMetrics.
func RegisterAppMetrics(collector MetricsCollector) *AppMetrics {
	return NewAppMetrics(collector)
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

func RecordIngest(metrics *AppMetrics, provenance string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.IngestCompoundsTotal.WithLabelValues(provenance, status).Inc()
	metrics.IngestDuration.WithLabelValues(provenance).Observe(duration.Seconds())
}

func RecordRetrieval(metrics *AppMetrics, success bool, duration time.Duration, anchorCount, neighborCount int) {
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.RetrievalRequestsTotal.WithLabelValues(status).Inc()
	metrics.RetrievalDuration.WithLabelValues("total").Observe(duration.Seconds())
	metrics.RetrievalAnchorCount.Observe(float64(anchorCount))
	metrics.RetrievalNeighborCount.Observe(float64(neighborCount))
	metrics.RetrievalResultCount.Observe(float64(anchorCount + neighborCount))
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error", "error").Inc()
	}
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(metrics *AppMetrics, component, errorType, severity string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType, severity).Inc()
}
