// Package metrics exports query pipeline metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "d3fend_graphx"

// Metrics holds the collectors on a private registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal   *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	rowsReturned   *prometheus.HistogramVec
	graphNodes     *prometheus.HistogramVec
	skippedRows    *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	questionsTotal *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Backend query executions by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Backend query latency",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"backend"},
		),
		rowsReturned: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_rows",
				Help:      "Rows returned per query",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"backend"},
		),
		graphNodes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_nodes",
				Help:      "Nodes per built graph",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"backend"},
		),
		skippedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builder_skipped_rows_total",
				Help:      "Rows or edges the graph builder could not use",
			},
			[]string{"backend"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		questionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "questions_total",
				Help:      "Questions sent to the answering engine by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.queriesTotal,
		m.queryDuration,
		m.rowsReturned,
		m.graphNodes,
		m.skippedRows,
		m.httpRequests,
		m.httpDuration,
		m.questionsTotal,
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
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
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveQuery records one backend execution.
func (m *Metrics) ObserveQuery(backend string, elapsed time.Duration, rows int, err error) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(backend, outcome(err)).Inc()
	m.queryDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
	if err == nil {
		m.rowsReturned.WithLabelValues(backend).Observe(float64(rows))
	}
}

// ObserveGraph records the size of a built graph and its skipped rows.
func (m *Metrics) ObserveGraph(backend string, nodes, skipped int) {
	if m == nil {
		return
	}
	m.graphNodes.WithLabelValues(backend).Observe(float64(nodes))
	if skipped > 0 {
		m.skippedRows.WithLabelValues(backend).Add(float64(skipped))
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveQuestion records one answering-engine call.
func (m *Metrics) ObserveQuestion(err error) {
	if m == nil {
		return
	}
	m.questionsTotal.WithLabelValues(outcome(err)).Inc()
}
