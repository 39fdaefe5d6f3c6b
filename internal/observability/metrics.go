// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	AccountsListed  prometheus.Counter
	LedgerErrors    prometheus.Counter
	RPCCallLatency  *prometheus.HistogramVec
	WSNotifications prometheus.Counter
	WSReconnects    prometheus.Counter

	// Enrichment metrics
	MetadataLookups     *prometheus.CounterVec
	PriceLookups        *prometheus.CounterVec
	CacheHits           *prometheus.CounterVec
	EnrichmentDuration  prometheus.Histogram
	StaleResultsDropped prometheus.Counter

	// Session metrics
	ActiveSessions prometheus.Gauge

	// Closure metrics
	ClosuresTotal     *prometheus.CounterVec
	AccountsClosed    prometheus.Counter
	TokensBurned      prometheus.Counter
	FeesCollected     prometheus.Counter
	ConfirmationDelay prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	HTTPRequestDuration *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulClosure prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_rent_reclaim"
	}

	return &Metrics{
		// Ledger metrics
		AccountsListed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "token_accounts_listed_total",
			Help:      "Total number of token accounts returned by ledger queries",
		}),
		LedgerErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "errors_total",
			Help:      "Total number of failed ledger queries",
		}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_signature_notifications_total",
			Help:      "Total number of signature notifications received over WebSocket",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnections",
		}),

		// Enrichment metrics
		MetadataLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "metadata_lookups_total",
			Help:      "Total number of metadata lookups by source",
		}, []string{"source"}),
		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "price_lookups_total",
			Help:      "Total number of price lookups by outcome",
		}, []string{"outcome"}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "cache_requests_total",
			Help:      "Total number of metadata cache requests by result",
		}, []string{"result"}),
		EnrichmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "duration_seconds",
			Help:      "Time from load start until every record is enriched",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		StaleResultsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "stale_results_dropped_total",
			Help:      "Total number of enrichment results discarded after an owner change",
		}),

		// Session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "active_sessions",
			Help:      "Number of open dashboard sessions",
		}),

		// Closure metrics
		ClosuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "closure",
			Name:      "workflows_total",
			Help:      "Total number of closure workflows by outcome",
		}, []string{"status"}),
		AccountsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "closure",
			Name:      "accounts_closed_total",
			Help:      "Total number of token accounts closed",
		}),
		TokensBurned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "closure",
			Name:      "burns_total",
			Help:      "Total number of burn instructions in confirmed closures",
		}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "closure",
			Name:      "fees_lamports_total",
			Help:      "Total service fee in lamports from confirmed closures",
		}),
		ConfirmationDelay: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "closure",
			Name:      "confirmation_seconds",
			Help:      "Time from submission to confirmation in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// API metrics
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds by route and status class",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		// Health metrics
		LastSuccessfulClosure: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_closure_timestamp",
			Help:      "Unix timestamp of last confirmed closure",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAccountsListed records a ledger query result.
func RecordAccountsListed(n int, err error) {
	if err != nil {
		DefaultMetrics.LedgerErrors.Inc()
		return
	}
	DefaultMetrics.AccountsListed.Add(float64(n))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordWSNotification increments the signature notification counter.
func RecordWSNotification() {
	DefaultMetrics.WSNotifications.Inc()
}

// RecordWSReconnect increments the WebSocket reconnect counter.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordMetadataLookup records which source answered a metadata lookup ("onchain", "registry" or "none").
func RecordMetadataLookup(source string) {
	DefaultMetrics.MetadataLookups.WithLabelValues(source).Inc()
}

// RecordPriceLookup records a price lookup outcome ("resolved" or "unresolved").
func RecordPriceLookup(resolved bool) {
	outcome := "unresolved"
	if resolved {
		outcome = "resolved"
	}
	DefaultMetrics.PriceLookups.WithLabelValues(outcome).Inc()
}

// RecordCacheRequest records a metadata cache hit or miss.
func RecordCacheRequest(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheHits.WithLabelValues(result).Inc()
}

// RecordEnrichmentSettled records how long enrichment of a load took.
func RecordEnrichmentSettled(seconds float64) {
	DefaultMetrics.EnrichmentDuration.Observe(seconds)
}

// RecordStaleResult increments the dropped stale result counter.
func RecordStaleResult() {
	DefaultMetrics.StaleResultsDropped.Inc()
}

// SessionOpened increments the active session gauge.
func SessionOpened() {
	DefaultMetrics.ActiveSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func SessionClosed() {
	DefaultMetrics.ActiveSessions.Dec()
}

// RecordClosure records the outcome of a closure workflow.
func RecordClosure(status string, accounts, burns int, feeLamports uint64, confirmSeconds float64, timestamp int64) {
	DefaultMetrics.ClosuresTotal.WithLabelValues(status).Inc()
	if status != "succeeded" {
		return
	}
	DefaultMetrics.AccountsClosed.Add(float64(accounts))
	DefaultMetrics.TokensBurned.Add(float64(burns))
	DefaultMetrics.FeesCollected.Add(float64(feeLamports))
	DefaultMetrics.ConfirmationDelay.Observe(confirmSeconds)
	DefaultMetrics.LastSuccessfulClosure.Set(float64(timestamp))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records an API request. route is the route pattern, not
// the raw path, to keep label cardinality bounded.
func RecordHTTPRequest(method, route string, status int, seconds float64) {
	if route == "" {
		route = "unmatched"
	}
	class := strconv.Itoa(status/100) + "xx"
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(method, route, class).Observe(seconds)
}
