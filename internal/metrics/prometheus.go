// Package metrics provides Prometheus-based metrics collection for tellix.
// A single process-wide registry collects probe invocation, workspace cleanup,
// janitor and API metrics, and is exposed by the HTTP API on /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all tellix metrics
	namespace = "tellix"

	// Subsystems
	subsystemProbe   = "probe"
	subsystemJanitor = "janitor"
	subsystemAPI     = "api"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Probe metrics
	probesTotal     *prometheus.CounterVec
	probeDuration   *prometheus.HistogramVec
	probeErrors     *prometheus.CounterVec
	recordsTotal    *prometheus.CounterVec
	targetsTotal    *prometheus.CounterVec
	activeProbes    prometheus.Gauge
	cleanupFailures prometheus.Counter

	// Janitor metrics
	janitorSweeps  *prometheus.CounterVec
	janitorRemoved prometheus.Counter

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	startTime time.Time
	registry  *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initProbeMetrics()
	pm.initJanitorMetrics()
	pm.initAPIMetrics()
	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

// initProbeMetrics initializes probe invocation metrics
func (pm *PrometheusMetrics) initProbeMetrics() {
	pm.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "invocations_total",
			Help:      "Total number of probe invocations by preset and status",
		},
		[]string{"preset", "status"},
	)

	pm.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Duration of probe invocations in seconds",
			Buckets:   []float64{0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
		[]string{"preset"},
	)

	pm.probeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "errors_total",
			Help:      "Total number of probe errors by preset and error code",
		},
		[]string{"preset", "error_type"},
	)

	pm.recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "records_total",
			Help:      "Total number of result records returned by the probing binary",
		},
		[]string{"preset"},
	)

	pm.targetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "targets_total",
			Help:      "Total number of targets submitted to the probing binary",
		},
		[]string{"preset"},
	)

	pm.activeProbes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "active",
			Help:      "Number of probe invocations currently running",
		},
	)

	pm.cleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "cleanup_failures_total",
			Help:      "Total number of workspaces that could not be removed after an invocation",
		},
	)
}

// initJanitorMetrics initializes scratch directory janitor metrics
func (pm *PrometheusMetrics) initJanitorMetrics() {
	pm.janitorSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemJanitor,
			Name:      "sweeps_total",
			Help:      "Total number of scratch directory sweeps by status",
		},
		[]string{"status"},
	)

	pm.janitorRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemJanitor,
			Name:      "removed_total",
			Help:      "Total number of stale workspaces removed by the janitor",
		},
	)
}

// initAPIMetrics initializes API-related metrics
func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0, 600.0},
		},
		[]string{"method", "route"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.probesTotal,
		pm.probeDuration,
		pm.probeErrors,
		pm.recordsTotal,
		pm.targetsTotal,
		pm.activeProbes,
		pm.cleanupFailures,
		pm.janitorSweeps,
		pm.janitorRemoved,
		pm.httpRequests,
		pm.httpDuration,
	)
}

// GetRegistry returns the Prometheus registry for HTTP handler
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// GetUptime returns the time since the metrics were created.
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// Probe Metrics Methods

// IncrementProbesTotal increments the invocation counter
func (pm *PrometheusMetrics) IncrementProbesTotal(preset, status string) {
	pm.probesTotal.WithLabelValues(preset, status).Inc()
}

// RecordProbeDuration records an invocation duration
func (pm *PrometheusMetrics) RecordProbeDuration(preset string, duration time.Duration) {
	pm.probeDuration.WithLabelValues(preset).Observe(duration.Seconds())
}

// IncrementProbeErrors increments the probe error counter
func (pm *PrometheusMetrics) IncrementProbeErrors(preset, errorType string) {
	pm.probeErrors.WithLabelValues(preset, errorType).Inc()
}

// AddRecords adds to the returned records counter
func (pm *PrometheusMetrics) AddRecords(preset string, count int) {
	pm.recordsTotal.WithLabelValues(preset).Add(float64(count))
}

// AddTargets adds to the submitted targets counter
func (pm *PrometheusMetrics) AddTargets(preset string, count int) {
	pm.targetsTotal.WithLabelValues(preset).Add(float64(count))
}

// ProbeStarted increments the active invocations gauge
func (pm *PrometheusMetrics) ProbeStarted() {
	pm.activeProbes.Inc()
}

// ProbeFinished decrements the active invocations gauge
func (pm *PrometheusMetrics) ProbeFinished() {
	pm.activeProbes.Dec()
}

// IncrementCleanupFailures counts a workspace that could not be removed
func (pm *PrometheusMetrics) IncrementCleanupFailures() {
	pm.cleanupFailures.Inc()
}

// Janitor Metrics Methods

// IncrementJanitorSweeps counts a janitor sweep by status
func (pm *PrometheusMetrics) IncrementJanitorSweeps(status string) {
	pm.janitorSweeps.WithLabelValues(status).Inc()
}

// AddJanitorRemoved adds to the removed stale workspaces counter
func (pm *PrometheusMetrics) AddJanitorRemoved(count int) {
	pm.janitorRemoved.Add(float64(count))
}

// API Metrics Methods

// IncrementHTTPRequests increments HTTP request counter
func (pm *PrometheusMetrics) IncrementHTTPRequests(method, route, status string) {
	pm.httpRequests.WithLabelValues(method, route, status).Inc()
}

// RecordHTTPDuration records HTTP request duration
func (pm *PrometheusMetrics) RecordHTTPDuration(method, route string, duration time.Duration) {
	pm.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Global instance for easy access
var globalMetrics *PrometheusMetrics
var metricsOnce sync.Once

// GetGlobalMetrics returns the global Prometheus metrics instance
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
