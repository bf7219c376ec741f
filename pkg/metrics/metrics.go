// Package metrics groups the Prometheus instruments of the memory service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "recall"

// Metrics groups all Prometheus instruments used by the service. Instruments
// are registered on a private registry so several instances can coexist.
type Metrics struct {
	registry *prometheus.Registry

	TurnsRecorded      prometheus.Counter
	Compactions        *prometheus.CounterVec
	SummaryFallbacks   *prometheus.CounterVec
	Rewrites           *prometheus.CounterVec
	StoreErrors        *prometheus.CounterVec
	EventsDropped      *prometheus.CounterVec
	CompactionDuration prometheus.Histogram
}

// New creates the instruments under namespace. Process and Go runtime
// collectors are registered alongside them.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TurnsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_recorded_total",
			Help:      "User/assistant exchanges recorded.",
		}),
		Compactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compactions_total",
			Help:      "Compactions by summarization strategy.",
		}, []string{"strategy"}),
		SummaryFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summarizer_fallbacks_total",
			Help:      "Rule-based summaries by fallback reason.",
		}, []string{"reason"}),
		Rewrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewrites_total",
			Help:      "Follow-up queries by matched pattern and outcome.",
		}, []string{"pattern", "rewritten"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Session store failures by operation.",
		}, []string{"op"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Session events not delivered, by reason.",
		}, []string{"reason"}),
		CompactionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compaction_duration_seconds",
			Help:      "Time spent summarizing evicted turns.",
			Buckets:   []float64{.001, .01, .05, .1, .5, 1, 2, 5, 10, 15},
		}),
	}
}

// ObserveCompaction records one compaction.
func (m *Metrics) ObserveCompaction(strategy, fallbackReason string, d time.Duration) {
	m.Compactions.WithLabelValues(strategy).Inc()
	if fallbackReason != "" {
		m.SummaryFallbacks.WithLabelValues(fallbackReason).Inc()
	}
	m.CompactionDuration.Observe(d.Seconds())
}

// ObserveRewrite records a query that matched a follow-up pattern.
func (m *Metrics) ObserveRewrite(pattern string, rewritten bool) {
	if pattern == "" {
		return
	}
	outcome := "false"
	if rewritten {
		outcome = "true"
	}
	m.Rewrites.WithLabelValues(pattern, outcome).Inc()
}

// Registry returns the registry holding the instruments.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
