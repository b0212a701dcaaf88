// Package metrics provides Prometheus metrics for geotrie
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for geotrie
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Query metrics
	QueriesTotal           *prometheus.CounterVec
	QueryDuration          prometheus.Histogram
	CoveringCellsPerQuery  prometheus.Histogram
	PrefixesPerQuery       prometheus.Histogram
	MatchesPerQuery        prometheus.Histogram

	// Index metrics
	IndexInsertsTotal   prometheus.Counter
	PrefixSearchesTotal prometheus.Counter
	IndexedRecords      prometheus.Gauge
	IndexedTokens       prometheus.Gauge
	TrieNodes           prometheus.Gauge

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// HTTP request metrics
	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geotrie_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geotrie_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrie_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Query metrics
	m.QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geotrie_queries_total",
			Help: "Total number of proximity queries",
		},
		[]string{"status"},
	)

	m.QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geotrie_query_duration_seconds",
			Help:    "Duration of proximity queries in seconds",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	m.CoveringCellsPerQuery = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geotrie_covering_cells_per_query",
			Help:    "Number of covering cells produced per query",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	m.PrefixesPerQuery = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geotrie_prefixes_per_query",
			Help:    "Number of search prefixes produced per query",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	m.MatchesPerQuery = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geotrie_matches_per_query",
			Help:    "Number of raw matches scanned per query before deduplication",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// Index metrics
	m.IndexInsertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geotrie_index_inserts_total",
			Help: "Total number of records inserted into the index",
		},
	)

	m.PrefixSearchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geotrie_prefix_searches_total",
			Help: "Total number of direct prefix searches",
		},
	)

	m.IndexedRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrie_indexed_records",
			Help: "Number of records currently indexed",
		},
	)

	m.IndexedTokens = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrie_indexed_tokens",
			Help: "Number of distinct terminal tokens in the index",
		},
	)

	m.TrieNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrie_trie_nodes",
			Help: "Number of nodes in the token trie",
		},
	)

	// Server metrics
	m.ServerUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrie_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime periodically updates the server uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordQuery records a proximity query and its fan-out
func (m *Metrics) RecordQuery(status string, duration time.Duration, cells, prefixes, matches int) {
	m.QueriesTotal.WithLabelValues(status).Inc()
	m.QueryDuration.Observe(duration.Seconds())
	m.CoveringCellsPerQuery.Observe(float64(cells))
	m.PrefixesPerQuery.Observe(float64(prefixes))
	m.MatchesPerQuery.Observe(float64(matches))
}

// UpdateIndexStats updates index size gauges
func (m *Metrics) UpdateIndexStats(records, tokens, nodes int) {
	m.IndexedRecords.Set(float64(records))
	m.IndexedTokens.Set(float64(tokens))
	m.TrieNodes.Set(float64(nodes))
}
