// Package metrics exposes Prometheus instrumentation for the pipeline,
// provider registry, guardrail engine, and satellite gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PipelineRequests counts requests handled by the pipeline, labeled by the
	// terminal layer that produced the response: instant, action, llm, blocked.
	PipelineRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "pipeline",
		Name:      "requests_total",
		Help:      "Requests processed, labeled by terminal layer.",
	}, []string{"layer"})

	// PipelineDuration tracks end-to-end request latency in seconds.
	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cortex",
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "End-to-end request latency.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10, 20},
	}, []string{"layer"})

	// GuardrailBlocks counts requests rejected by the guardrail cage, labeled
	// by the stage that blocked them: static, semantic, output.
	GuardrailBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "guardrail",
		Name:      "blocks_total",
		Help:      "Requests blocked by the guardrail cage.",
	}, []string{"stage"})

	// ProviderFailovers counts provider-registry failovers, labeled by role
	// (fast/standard/thinking/embed/tts) and the kind of failure that triggered it.
	ProviderFailovers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "provider",
		Name:      "failovers_total",
		Help:      "Provider failovers, labeled by role and failure kind.",
	}, []string{"role", "kind"})

	// SatelliteSessions tracks the number of connected satellite sessions.
	SatelliteSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cortex",
		Subsystem: "satellite",
		Name:      "sessions",
		Help:      "Currently connected satellite sessions.",
	})

	// ColdQueueDepth tracks the backlog of the COLD memory write queue.
	ColdQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cortex",
		Subsystem: "memory",
		Name:      "cold_queue_depth",
		Help:      "Pending entries in the COLD memory write queue.",
	})
)

// RegisterRoutes mounts the Prometheus scrape endpoint on mux.
func RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
