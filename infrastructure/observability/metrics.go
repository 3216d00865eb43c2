// Package observability holds the Prometheus collector and the
// OpenTelemetry bootstrap.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domainservices "github.com/NikolaosSamperis/PlaqueMS-project/domain/services"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// Collector holds all Prometheus metrics for the service. Each Collector
// owns a private registry so tests can create as many as they need.
type Collector struct {
	registry *prometheus.Registry

	Orchestrations        *prometheus.CounterVec
	OrchestrationDuration *prometheus.HistogramVec
	StepDuration          *prometheus.HistogramVec
	RemoteCalls           *prometheus.CounterVec
	RemoteCallDuration    *prometheus.HistogramVec
	PollIterations        prometheus.Counter
	FetchDuration         *prometheus.HistogramVec
	DanglingEdges         prometheus.Counter
	StaleAssignments      prometheus.Counter
	ParamsReloads         prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Orchestrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orchestrations_total",
			Help:      "Clustering cycles by terminal outcome",
		}, []string{"outcome"}),
		OrchestrationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "orchestration_duration_seconds",
			Help:      "Clustering cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"outcome"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_step_duration_seconds",
			Help:      "Duration of each cycle step",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step", "kind"}),
		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Calls to the clustering service by step and HTTP status",
		}, []string{"step", "status"}),
		RemoteCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Clustering service call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		PollIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_poll_iterations_total",
			Help:      "Job status polls issued",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Data source query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "status"}),
		DanglingEdges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dangling_edges_dropped_total",
			Help:      "Edges dropped because an endpoint was not in the node set",
		}),
		StaleAssignments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_assignments_discarded_total",
			Help:      "Partition rows naming nodes outside the submitted graph",
		}),
		ParamsReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clustering_params_reloads_total",
			Help:      "Successful reloads of the clustering parameter file",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		c.Orchestrations,
		c.OrchestrationDuration,
		c.StepDuration,
		c.RemoteCalls,
		c.RemoteCallDuration,
		c.PollIterations,
		c.FetchDuration,
		c.DanglingEdges,
		c.StaleAssignments,
		c.ParamsReloads,
		c.HTTPRequests,
		c.HTTPDuration,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveOrchestration records a finished cycle.
func (c *Collector) ObserveOrchestration(outcome string, duration time.Duration) {
	c.Orchestrations.WithLabelValues(outcome).Inc()
	c.OrchestrationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveStep records one cycle step. kind is "ok" or the error type.
func (c *Collector) ObserveStep(step string, duration time.Duration, err error) {
	kind := "ok"
	if err != nil {
		kind = string(pkgerrors.TypeOf(err))
	}
	c.StepDuration.WithLabelValues(step, kind).Observe(duration.Seconds())
}

// ObserveAssembly records the assembler's drop counts.
func (c *Collector) ObserveAssembly(report domainservices.AssemblyReport) {
	c.DanglingEdges.Add(float64(report.DanglingEdgesDropped))
}

// ObserveStaleAssignments records discarded partition rows.
func (c *Collector) ObserveStaleAssignments(count int) {
	c.StaleAssignments.Add(float64(count))
}

// ObserveRemoteCall records one clustering service call. Status 0 means
// no HTTP response was received.
func (c *Collector) ObserveRemoteCall(step string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.RemoteCalls.WithLabelValues(step, label).Inc()
	c.RemoteCallDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// ObservePoll counts one job status poll.
func (c *Collector) ObservePoll() {
	c.PollIterations.Inc()
}

// ObserveFetch records one data source query.
func (c *Collector) ObserveFetch(source string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.FetchDuration.WithLabelValues(source, status).Observe(duration.Seconds())
}

// ObserveParamsReload counts a clustering parameter reload.
func (c *Collector) ObserveParamsReload() {
	c.ParamsReloads.Inc()
}

// RecordHTTPRequest records an HTTP request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
