// Package metrics exposes Prometheus collectors for the scheduler, tool
// dispatch, and persistence subsystems. Grounded on
// internal/app/metrics/metrics.go's package-level registry + counter/
// histogram vector pattern, generalized from HTTP/function/automation
// metrics to flow-execution-shaped ones.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/r3e-network/flowengine/internal/flow"
)

// Registry holds flowengine's Prometheus collectors, kept separate from the
// default global registry so tests can construct throwaway instances.
var Registry = prometheus.NewRegistry()

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowengine",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowengine",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flowengine",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	schedulerWaves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowengine",
		Subsystem: "scheduler",
		Name:      "waves_total",
		Help:      "Total number of scheduler wave iterations executed.",
	}, []string{"tenant_id"})

	schedulerExecutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowengine",
		Subsystem: "scheduler",
		Name:      "executions_total",
		Help:      "Total number of flow executions, by terminal status.",
	}, []string{"tenant_id", "status"})

	schedulerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flowengine",
		Subsystem: "scheduler",
		Name:      "execution_duration_seconds",
		Help:      "Duration of a full flow execution.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"tenant_id"})

	toolDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowengine",
		Subsystem: "tools",
		Name:      "dispatch_total",
		Help:      "Total number of tool dispatch calls, by scheme and outcome.",
	}, []string{"scheme", "success"})

	toolDispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flowengine",
		Subsystem: "tools",
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of a tool dispatch call.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"scheme"})

	snapshotsSaved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowengine",
		Subsystem: "persistence",
		Name:      "snapshots_saved_total",
		Help:      "Total number of execution snapshots persisted.",
	}, []string{"tenant_id"})

	snapshotsRecovered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowengine",
		Subsystem: "persistence",
		Name:      "snapshots_recovered_total",
		Help:      "Total number of executions resumed from a snapshot.",
	}, []string{"tenant_id"})

	nodesRun = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowengine",
		Subsystem: "scheduler",
		Name:      "nodes_run_total",
		Help:      "Total number of flow nodes executed.",
	}, []string{"tenant_id"})

	nodesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowengine",
		Subsystem: "scheduler",
		Name:      "nodes_skipped_total",
		Help:      "Total number of flow nodes skipped by a guard.",
	}, []string{"tenant_id"})

	nodesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowengine",
		Subsystem: "scheduler",
		Name:      "nodes_failed_total",
		Help:      "Total number of flow nodes that errored.",
	}, []string{"tenant_id"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		schedulerWaves,
		schedulerExecutions,
		schedulerDuration,
		toolDispatchTotal,
		toolDispatchDuration,
		snapshotsSaved,
		snapshotsRecovered,
		nodesRun,
		nodesSkipped,
		nodesFailed,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// InstrumentHandler wraps next with request-count, duration, and in-flight
// collection.
func InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordHTTPRequest records one completed HTTP request's method, path, and
// status, for routers (e.g. gin) that report these outside the
// InstrumentHandler http.Handler wrapper.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSchedulerWave records one scheduler wave iteration for tenantID.
func RecordSchedulerWave(tenantID string) {
	schedulerWaves.WithLabelValues(tenantID).Inc()
}

// RecordExecution records a completed flow execution's outcome and duration.
func RecordExecution(tenantID, status string, duration time.Duration) {
	schedulerExecutions.WithLabelValues(tenantID, status).Inc()
	schedulerDuration.WithLabelValues(tenantID).Observe(duration.Seconds())
}

// RecordToolDispatch records one tool dispatch call's scheme, outcome, and
// latency.
func RecordToolDispatch(scheme string, success bool, duration time.Duration) {
	toolDispatchTotal.WithLabelValues(scheme, strconv.FormatBool(success)).Inc()
	toolDispatchDuration.WithLabelValues(scheme).Observe(duration.Seconds())
}

// RecordSnapshotSaved records a snapshot persisted for tenantID.
func RecordSnapshotSaved(tenantID string) {
	snapshotsSaved.WithLabelValues(tenantID).Inc()
}

// RecordSnapshotRecovered records an execution resumed from a snapshot for
// tenantID.
func RecordSnapshotRecovered(tenantID string) {
	snapshotsRecovered.WithLabelValues(tenantID).Inc()
}

// SchedulerMetrics builds a flow.Metrics bound to tenantID's label values,
// so internal/flow.Scheduler's counters surface on the same registry as
// every other flowengine collector instead of requiring a second one.
func SchedulerMetrics(tenantID string) *flow.Metrics {
	return &flow.Metrics{
		WavesTotal:   schedulerWaves.WithLabelValues(tenantID),
		NodesRun:     nodesRun.WithLabelValues(tenantID),
		NodesSkipped: nodesSkipped.WithLabelValues(tenantID),
		NodesFailed:  nodesFailed.WithLabelValues(tenantID),
	}
}
