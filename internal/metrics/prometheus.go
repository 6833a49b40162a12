package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "endgame_mcp"

var engineStates = []string{"uninitialized", "initializing", "ready", "busy", "shutting_down", "terminated"}

// Collector records server metrics into the registry it was created with.
// It satisfies the observer interfaces of the uci, tablebase and training
// packages.
type Collector struct {
	// MCP tool metrics
	toolCallsTotal   *prometheus.CounterVec
	toolErrorsTotal  *prometheus.CounterVec
	toolDurationSecs *prometheus.HistogramVec

	// Rate limit metrics
	rateLimitHitsTotal   *prometheus.CounterVec
	rateLimitChecksTotal prometheus.Counter

	// Engine metrics
	engineState           *prometheus.GaugeVec
	engineRestartsTotal   prometheus.Counter
	engineCrashesTotal    prometheus.Counter
	engineHealthChecks    *prometheus.CounterVec
	engineRequestDuration *prometheus.HistogramVec

	// Training metrics
	classificationsTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Cache metrics
	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec
	cacheSize        prometheus.Gauge
	cacheItems       prometheus.Gauge

	tools *toolStats
}

// NewCollector registers all metrics on reg. Use prometheus.NewRegistry in
// tests so collectors do not collide.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		toolCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of MCP tool calls",
			},
			[]string{"tool", "status"},
		),
		toolErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_errors_total",
				Help:      "Total number of MCP tool errors",
			},
			[]string{"tool", "error_type"},
		),
		toolDurationSecs: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Duration of MCP tool calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),

		rateLimitHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Total number of rate limit hits",
			},
			[]string{"client", "tool"},
		),
		rateLimitChecksTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_checks_total",
				Help:      "Total number of rate limit checks",
			},
		),

		engineState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "engine_state",
				Help:      "1 for the engine session's current state, 0 otherwise",
			},
			[]string{"state"},
		),
		engineRestartsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_restarts_total",
				Help:      "Total number of engine restarts",
			},
		),
		engineCrashesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_crashes_total",
				Help:      "Total number of unexpected engine exits",
			},
		),
		engineHealthChecks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_health_checks_total",
				Help:      "Total number of engine health checks",
			},
			[]string{"status"},
		),
		engineRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_request_duration_seconds",
				Help:      "Time from writing a search to its terminal response",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind", "status"},
		),

		classificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "move_classifications_total",
				Help:      "Moves classified, by quality category",
			},
			[]string{"category"},
		),

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		cacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"source"},
		),
		cacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"source"},
		),
		cacheSize: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_size_bytes",
				Help:      "Current in-memory cache size in bytes",
			},
		),
		cacheItems: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_items",
				Help:      "Current number of items in the in-memory cache",
			},
		),

		tools: newToolStats(),
	}
}

// RecordToolCall records a tool call. status is "success", "error" or
// "rate_limited".
func (c *Collector) RecordToolCall(tool, status string, d time.Duration) {
	c.toolCallsTotal.WithLabelValues(tool, status).Inc()
	c.toolDurationSecs.WithLabelValues(tool).Observe(d.Seconds())
	if status == "error" {
		c.toolErrorsTotal.WithLabelValues(tool, "general").Inc()
	}
	c.tools.record(tool, status, d)
}

// RecordRateLimit records a rate limit check.
func (c *Collector) RecordRateLimit(client, tool string, hit bool) {
	c.rateLimitChecksTotal.Inc()
	if hit {
		c.rateLimitHitsTotal.WithLabelValues(client, tool).Inc()
	}
}

// EngineStateChanged sets the state gauge so exactly one state reads 1.
func (c *Collector) EngineStateChanged(state string) {
	for _, s := range engineStates {
		v := 0.0
		if s == state {
			v = 1
		}
		c.engineState.WithLabelValues(s).Set(v)
	}
}

// EngineRequestFinished observes how long a request held the engine.
func (c *Collector) EngineRequestFinished(kind string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.engineRequestDuration.WithLabelValues(kind, status).Observe(d.Seconds())
}

func (c *Collector) EngineCrashed() {
	c.engineCrashesTotal.Inc()
}

func (c *Collector) RecordEngineRestart() {
	c.engineRestartsTotal.Inc()
}

// RecordEngineHealthCheck records a health check result.
func (c *Collector) RecordEngineHealthCheck(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.engineHealthChecks.WithLabelValues(status).Inc()
}

func (c *Collector) RecordClassification(category string) {
	c.classificationsTotal.WithLabelValues(category).Inc()
}

// RecordHTTPRequest records an HTTP request.
func (c *Collector) RecordHTTPRequest(method, path, status string, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (c *Collector) RecordCacheHit(source string) {
	c.cacheHitsTotal.WithLabelValues(source).Inc()
}

func (c *Collector) RecordCacheMiss(source string) {
	c.cacheMissesTotal.WithLabelValues(source).Inc()
}

// SetCacheStats sets the in-memory cache gauges.
func (c *Collector) SetCacheStats(items int, sizeBytes int64) {
	c.cacheItems.Set(float64(items))
	c.cacheSize.Set(float64(sizeBytes))
}

// ToolStats summarises recent tool calls for status output.
func (c *Collector) ToolStats() Stats {
	return c.tools.snapshot()
}
