package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/guttosm/flexpulse/internal/diagnostics"
	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ImportsTotal     *prometheus.CounterVec // labels: source, result
	FillsParsed      prometheus.Counter
	DiagnosticsTotal *prometheus.CounterVec // labels: kind
	TradesCurrent    *prometheus.GaugeVec   // labels: status
	RebuildDur       prometheus.Histogram
	LastRebuild      prometheus.Gauge

	HTTPRequestsTotal *prometheus.CounterVec // labels: method, route, status
	HTTPRequestDur    *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ImportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexpulse_imports_total",
			Help: "Report imports by source and result",
		}, []string{"source", "result"}),
		FillsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flexpulse_fills_parsed_total",
			Help: "Executions decoded from imported reports",
		}),
		DiagnosticsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexpulse_diagnostics_total",
			Help: "Rejected fills and reconciliation warnings by kind",
		}, []string{"kind"}),
		TradesCurrent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flexpulse_trades",
			Help: "Trades in the current trade set by status",
		}, []string{"status"}),
		RebuildDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flexpulse_rebuild_duration_seconds",
			Help:    "Time to normalize and reconcile a trade set",
			Buckets: prometheus.DefBuckets,
		}),
		LastRebuild: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flexpulse_last_rebuild_timestamp_seconds",
			Help: "Unix time of the last trade set swap",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexpulse_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flexpulse_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ImportsTotal,
		m.FillsParsed,
		m.DiagnosticsTotal,
		m.TradesCurrent,
		m.RebuildDur,
		m.LastRebuild,
		m.HTTPRequestsTotal,
		m.HTTPRequestDur,
	)
	return m
}

// Registry exposes the underlying registry (used by tests).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Report counts a diagnostic event; Metrics satisfies diagnostics.Sink.
func (m *Metrics) Report(ev diagnostics.Event) {
	if m == nil {
		return
	}
	m.DiagnosticsTotal.WithLabelValues(string(ev.Kind)).Inc()
}

// ObserveImport records the outcome of a report import.
func (m *Metrics) ObserveImport(source string, fills int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ImportsTotal.WithLabelValues(source, result).Inc()
	m.FillsParsed.Add(float64(fills))
}

// ObserveRebuild records a trade set swap.
func (m *Metrics) ObserveRebuild(trades []models.Trade, took time.Duration) {
	if m == nil {
		return
	}
	counts := map[models.TradeStatus]int{
		models.StatusClosed:  0,
		models.StatusOpen:    0,
		models.StatusExpired: 0,
	}
	for _, t := range trades {
		counts[t.Status]++
	}
	for status, n := range counts {
		m.TradesCurrent.WithLabelValues(string(status)).Set(float64(n))
	}
	m.RebuildDur.Observe(took.Seconds())
	m.LastRebuild.SetToCurrentTime()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDur.WithLabelValues(route).Observe(took.Seconds())
}
