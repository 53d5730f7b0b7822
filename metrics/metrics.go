// Package metrics exposes the service's Prometheus metrics on a dedicated registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricRequestsTotal          = "http_requests_total"
	MetricRequestDurationSeconds = "http_request_duration_seconds"
	MetricLedgerPostingsTotal    = "ledger_postings_total"
	MetricLedgerVoidsTotal       = "ledger_voids_total"
	MetricLedgerDriftFindings    = "ledger_drift_findings"
	MetricOutboxPublishedTotal   = "ledger_outbox_published_total"
)

var (
	registry = prometheus.NewRegistry()

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricRequestsTotal,
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	requestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    MetricRequestDurationSeconds,
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ledgerPostingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricLedgerPostingsTotal,
		Help: "Ledger transactions posted, by transaction type.",
	}, []string{"type"})

	ledgerVoidsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricLedgerVoidsTotal,
		Help: "Ledger transactions voided, by transaction type.",
	}, []string{"type"})

	ledgerDriftFindings = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: MetricLedgerDriftFindings,
		Help: "Findings of the last integrity run, by boarding house and check.",
	}, []string{"boarding_house_id", "check"})

	outboxPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricOutboxPublishedTotal,
		Help: "Ledger outbox publish attempts by result (sent, failed, dead).",
	}, []string{"result"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requestsTotal,
		requestDurationSeconds,
		ledgerPostingsTotal,
		ledgerVoidsTotal,
		ledgerDriftFindings,
		outboxPublishedTotal,
	)
}

// Registry returns the service registry (tests gather from it).
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// GinMiddleware records request count and latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDurationSeconds.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func RecordPosting(transactionType string) {
	ledgerPostingsTotal.WithLabelValues(transactionType).Inc()
}

func RecordVoid(transactionType string) {
	ledgerVoidsTotal.WithLabelValues(transactionType).Inc()
}

func RecordOutboxResult(result string) {
	outboxPublishedTotal.WithLabelValues(result).Inc()
}

// SetDriftFindings replaces the gauge value of one integrity check for a house.
func SetDriftFindings(boardingHouseId int, check string, findings int) {
	ledgerDriftFindings.WithLabelValues(strconv.Itoa(boardingHouseId), check).Set(float64(findings))
}
