// Package metrics exposes Prometheus counters for ingestion runs and blob writes.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "chronicle"

// Metrics holds the archive's collectors. A nil *Metrics records nothing.
type Metrics struct {
	ItemsTotal     *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
	FailuresTotal  *prometheus.CounterVec
	BlobBytesTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.ItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Fetched items by kind and dedup decision",
		},
		[]string{"kind", "decision"}, // "commit", "skip"
	)

	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed source runs by result",
		},
		[]string{"source", "result"}, // "success", "error"
	)

	m.FailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Failed fetch-and-commit attempts by source",
		},
		[]string{"source"},
	)

	m.BlobBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_bytes_written_total",
			Help:      "Bytes written to the blob store by kind",
		},
		[]string{"kind"},
	)

	m.registry.MustRegister(m.ItemsTotal, m.RunsTotal, m.FailuresTotal, m.BlobBytesTotal)
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes every metric to path in the text exposition format, for the
// node_exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Push replaces the metrics grouped under job on the Pushgateway at gatewayURL.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if m == nil {
		return nil
	}
	return push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx)
}

// RecordItem counts one dedup decision.
func (m *Metrics) RecordItem(kind, decision string) {
	if m != nil {
		m.ItemsTotal.WithLabelValues(kind, decision).Inc()
	}
}

// RecordRun counts a finished source run.
func (m *Metrics) RecordRun(source string, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "error"
	}
	m.RunsTotal.WithLabelValues(source, result).Inc()
}

// RecordFailure counts one failed attempt for source.
func (m *Metrics) RecordFailure(source string) {
	if m != nil {
		m.FailuresTotal.WithLabelValues(source).Inc()
	}
}

// RecordBlobBytes adds n written bytes for kind.
func (m *Metrics) RecordBlobBytes(kind string, n int) {
	if m != nil {
		m.BlobBytesTotal.WithLabelValues(kind).Add(float64(n))
	}
}
