// Package metrics exposes Prometheus instrumentation for the conductor.
//
// Information Hiding:
// - Collectors live on a private registry, no global state
// - Label sets and bucket layouts hidden behind observer methods
// - Satisfies the llm and orchestration observer interfaces

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/richinex/conductor/llm"
	"github.com/richinex/conductor/orchestration"
)

const namespace = "conductor"

// Collector holds all Prometheus metrics for the conductor.
type Collector struct {
	Registry *prometheus.Registry

	// Provider calls.
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMTokensUsed      *prometheus.CounterVec

	// Conductor runs.
	ConductTotal    *prometheus.CounterVec
	ConductDuration *prometheus.HistogramVec
	SubTasksTotal   *prometheus.CounterVec
	FallbacksTotal  *prometheus.CounterVec

	// HTTP server.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ActiveRequests      prometheus.Gauge
}

var (
	_ llm.CallObserver        = (*Collector)(nil)
	_ orchestration.Recorder = (*Collector)(nil)
)

// New creates a Collector with every metric registered on its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	m := &Collector{
		Registry: reg,

		LLMRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total provider calls after retries.",
		}, []string{"provider", "model", "status"}),

		LLMRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Provider call duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		LLMTokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_used_total",
			Help:      "Total tokens consumed.",
		}, []string{"provider", "model", "direction"}),

		ConductTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conduct",
			Name:      "requests_total",
			Help:      "Total Conduct calls by mode and tier.",
		}, []string{"mode", "tier"}),

		ConductDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conduct",
			Name:      "duration_seconds",
			Help:      "End-to-end Conduct duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"mode"}),

		SubTasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conduct",
			Name:      "sub_tasks_total",
			Help:      "Executed sub-tasks by outcome.",
		}, []string{"status"}),

		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conduct",
			Name:      "fallbacks_total",
			Help:      "Fallbacks taken by stage.",
		}, []string{"stage"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of in-flight HTTP requests.",
		}),
	}

	reg.MustRegister(
		m.LLMRequestsTotal,
		m.LLMRequestDuration,
		m.LLMTokensUsed,
		m.ConductTotal,
		m.ConductDuration,
		m.SubTasksTotal,
		m.FallbacksTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveLLMCall records one provider call.
func (m *Collector) ObserveLLMCall(provider, model string, elapsed time.Duration, usage *llm.TokenUsage, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.LLMRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(elapsed.Seconds())
	if usage != nil {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(usage.PromptTokens))
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(usage.CompletionTokens))
	}
}

// ObserveConduct records one finished Conduct call.
func (m *Collector) ObserveConduct(mode, tier string, elapsed time.Duration, tasksSucceeded, tasksFailed int) {
	if tier == "" {
		tier = "none"
	}
	m.ConductTotal.WithLabelValues(mode, tier).Inc()
	m.ConductDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if tasksSucceeded > 0 {
		m.SubTasksTotal.WithLabelValues("success").Add(float64(tasksSucceeded))
	}
	if tasksFailed > 0 {
		m.SubTasksTotal.WithLabelValues("failed").Add(float64(tasksFailed))
	}
}

// ObserveFallback records a fallback taken at stage.
func (m *Collector) ObserveFallback(stage string) {
	m.FallbacksTotal.WithLabelValues(stage).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware counts requests served by next. path is used as the label
// so that unbounded URL variants do not explode cardinality.
func (m *Collector) Middleware(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.ActiveRequests.Inc()
		defer m.ActiveRequests.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
