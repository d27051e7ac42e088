// Package metrics holds the Prometheus collectors for storyforge and the
// registry served at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storyforge"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	agentExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_executions_total",
			Help:      "Total number of agent executions",
		},
		[]string{"kind", "status"}, // kind: builtin, custom
	)

	agentExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_execution_duration_seconds",
			Help:      "Duration of agent executions in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	resourcesUploadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_uploaded_total",
			Help:      "Total number of resources stored from uploads",
		},
		[]string{"type"},
	)

	parseFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Total number of rejected uploads by reason",
		},
		[]string{"reason"}, // reason: unsupported_type, empty_extraction, malformed
	)

	workflowSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflow_sessions_active",
			Help:      "Number of live workflow sessions",
		},
	)

	allMetrics = []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDuration,
		agentExecutionsTotal,
		agentExecutionDuration,
		resourcesUploadedTotal,
		parseFailuresTotal,
		workflowSessionsActive,
	}
)

// NewRegistry returns a registry with every storyforge collector plus the Go
// runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range allMetrics {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordHTTPRequest records one served request. route is the matched mux
// pattern, never the raw path.
func RecordHTTPRequest(method, route, status string, durationSeconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordAgentExecution records a finished agent run.
func RecordAgentExecution(kind, status string, durationSeconds float64) {
	agentExecutionsTotal.WithLabelValues(kind, status).Inc()
	agentExecutionDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordResourceUploaded counts a stored upload by resource type.
func RecordResourceUploaded(resourceType string) {
	resourcesUploadedTotal.WithLabelValues(resourceType).Inc()
}

// RecordParseFailure counts a rejected upload.
func RecordParseFailure(reason string) {
	parseFailuresTotal.WithLabelValues(reason).Inc()
}

// SessionOpened and SessionClosed track live workflow sessions.
func SessionOpened() { workflowSessionsActive.Inc() }

func SessionClosed() { workflowSessionsActive.Dec() }
