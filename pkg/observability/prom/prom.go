// Package prom implements the observability hooks with Prometheus metrics.
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/appmap/pkg/observability"
)

// Metrics holds the collectors behind every hook interface.
type Metrics struct {
	buildTotal       *prometheus.CounterVec
	buildErrorTotal  *prometheus.CounterVec
	buildDuration    *prometheus.HistogramVec
	graphNodes       *prometheus.HistogramVec
	mergeTotal       *prometheus.CounterVec
	skippedTotal     prometheus.Counter
	layoutSaveTotal  *prometheus.CounterVec
	layoutSaveErrors *prometheus.CounterVec
	layoutSaveDur    prometheus.Histogram
	cleanupTotal     *prometheus.CounterVec
	cleanupChanged   prometheus.Counter
	cacheTotal       *prometheus.CounterVec
	cacheBytes       prometheus.Counter
	httpTotal        *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. It panics if a
// collector is already registered, like prometheus.MustRegister.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		buildTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmap_diagram_build_total",
				Help: "Number of diagram builds by scope.",
			},
			[]string{"scope"},
		),
		buildErrorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmap_diagram_build_error_total",
				Help: "Number of failed diagram builds by scope.",
			},
			[]string{"scope"},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appmap_diagram_build_duration_seconds",
				Help:    "Time taken to assemble a diagram.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scope"},
		),
		graphNodes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appmap_diagram_nodes",
				Help:    "Node count of assembled diagrams.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"scope"},
		),
		mergeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmap_diagram_merge_total",
				Help: "Layout merges by scope and whether a stored layout existed.",
			},
			[]string{"scope", "stored"},
		),
		skippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "appmap_diagram_skipped_integrations_total",
				Help: "Integrations skipped because an endpoint app is missing.",
			},
		),
		layoutSaveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmap_layout_save_total",
				Help: "Number of layout saves by kind.",
			},
			[]string{"kind"},
		),
		layoutSaveErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmap_layout_save_error_total",
				Help: "Number of failed layout saves by kind.",
			},
			[]string{"kind"},
		),
		layoutSaveDur: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "appmap_layout_save_duration_seconds",
				Help:    "Time taken to persist a layout.",
				Buckets: prometheus.DefBuckets,
			},
		),
		cleanupTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmap_layout_cleanup_total",
				Help: "Reference cleanups by deleted entity and result.",
			},
			[]string{"entity", "result"},
		),
		cleanupChanged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "appmap_layout_cleanup_rewritten_total",
				Help: "Layouts rewritten by reference cleanup.",
			},
		),
		cacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmap_cache_requests_total",
				Help: "Cache lookups and writes by key type and outcome.",
			},
			[]string{"key_type", "outcome"},
		),
		cacheBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "appmap_cache_written_bytes_total",
				Help: "Bytes written to the cache.",
			},
		),
		httpTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmap_http_requests_total",
				Help: "Served API requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appmap_http_request_duration_seconds",
				Help:    "API request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.buildTotal,
		m.buildErrorTotal,
		m.buildDuration,
		m.graphNodes,
		m.mergeTotal,
		m.skippedTotal,
		m.layoutSaveTotal,
		m.layoutSaveErrors,
		m.layoutSaveDur,
		m.cleanupTotal,
		m.cleanupChanged,
		m.cacheTotal,
		m.cacheBytes,
		m.httpTotal,
		m.httpDuration,
	)
	return m
}

// Install registers m as every global hook.
func (m *Metrics) Install() {
	observability.SetDiagramHooks(m)
	observability.SetLayoutHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

// =============================================================================
// Diagram
// =============================================================================

func (m *Metrics) OnBuildStart(_ context.Context, scope, _ string) {
	m.buildTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) OnBuildComplete(_ context.Context, scope, _ string, nodes, _ int, d time.Duration, err error) {
	if err != nil {
		m.buildErrorTotal.WithLabelValues(scope).Inc()
		return
	}
	m.buildDuration.WithLabelValues(scope).Observe(d.Seconds())
	m.graphNodes.WithLabelValues(scope).Observe(float64(nodes))
}

func (m *Metrics) OnMerge(_ context.Context, scope string, stored bool) {
	m.mergeTotal.WithLabelValues(scope, strconv.FormatBool(stored)).Inc()
}

func (m *Metrics) OnSkippedIntegration(context.Context, int64) {
	m.skippedTotal.Inc()
}

// =============================================================================
// Layout
// =============================================================================

func (m *Metrics) OnSave(_ context.Context, kind string, d time.Duration, err error) {
	m.layoutSaveTotal.WithLabelValues(kind).Inc()
	if err != nil {
		m.layoutSaveErrors.WithLabelValues(kind).Inc()
		return
	}
	m.layoutSaveDur.Observe(d.Seconds())
}

func (m *Metrics) OnCleanup(_ context.Context, entity string, changed int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.cleanupTotal.WithLabelValues(entity, result).Inc()
	m.cleanupChanged.Add(float64(changed))
}

// =============================================================================
// Cache
// =============================================================================

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheTotal.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheTotal.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheTotal.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.Add(float64(size))
}

// =============================================================================
// HTTP
// =============================================================================

func (m *Metrics) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	m.httpTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ observability.DiagramHooks = (*Metrics)(nil)
	_ observability.LayoutHooks  = (*Metrics)(nil)
	_ observability.CacheHooks   = (*Metrics)(nil)
	_ observability.HTTPHooks    = (*Metrics)(nil)
)
