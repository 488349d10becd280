package vamana

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector exports MetricsCollector events as Prometheus metrics
// on its own registry.
type PrometheusCollector struct {
	registry *prometheus.Registry

	ops           *prometheus.CounterVec
	errors        *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	prebuildBytes prometheus.Counter
	builtNodes    prometheus.Counter
	searchVisited prometheus.Histogram
	inserts       prometheus.Counter
}

// NewPrometheusCollector registers the vamana metrics under namespace
// (default "vamana") on a fresh registry.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	if namespace == "" {
		namespace = "vamana"
	}
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &PrometheusCollector{
		registry: registry,
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total operations by kind",
		}, []string{"op"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total failed operations by kind",
		}, []string{"op"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Operation latency by kind",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 12),
		}, []string{"op"}),
		prebuildBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reserved_bytes_total",
			Help:      "Total bytes reserved by prebuild",
		}),
		builtNodes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "built_nodes_total",
			Help:      "Total nodes indexed by successful builds",
		}),
		searchVisited: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_visited_nodes",
			Help:      "Distance evaluations per search",
			Buckets:   prometheus.ExponentialBuckets(8, 2, 12),
		}),
		inserts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ignored_inserts_total",
			Help:      "Insert calls ignored because incremental insertion is unsupported",
		}),
	}
}

// Registry returns the collector's registry.
func (p *PrometheusCollector) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusCollector) observe(op string, duration time.Duration, err error) {
	p.ops.WithLabelValues(op).Inc()
	p.latency.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		p.errors.WithLabelValues(op).Inc()
	}
}

// RecordPrebuild implements MetricsCollector.
func (p *PrometheusCollector) RecordPrebuild(bytes int64, duration time.Duration, err error) {
	p.observe("prebuild", duration, err)
	if err == nil {
		p.prebuildBytes.Add(float64(bytes))
	}
}

// RecordBuild implements MetricsCollector.
func (p *PrometheusCollector) RecordBuild(nodes int, duration time.Duration, err error) {
	p.observe("build", duration, err)
	if err == nil {
		p.builtNodes.Add(float64(nodes))
	}
}

// RecordLoad implements MetricsCollector.
func (p *PrometheusCollector) RecordLoad(duration time.Duration, err error) {
	p.observe("load", duration, err)
}

// RecordSearch implements MetricsCollector.
func (p *PrometheusCollector) RecordSearch(k, visited int, duration time.Duration, err error) {
	p.observe("search", duration, err)
	if err == nil {
		p.searchVisited.Observe(float64(visited))
	}
}

// RecordInsert implements MetricsCollector.
func (p *PrometheusCollector) RecordInsert() {
	p.ops.WithLabelValues("insert").Inc()
	p.inserts.Inc()
}
