package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		cacheHitsTotal,
		toolInvocationsTotal,
	)
}

var cacheHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "media_cache_hits_total",
		Help: "Artifact cache hits per operation (download/sanitize/audio/transcript).",
	},
	[]string{"op"},
)

var toolInvocationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "media_tool_invocations_total",
		Help: "External binary invocations per tool and outcome.",
	},
	[]string{"tool", "outcome"}, // outcome: 'ok', 'timeout', 'blocked', 'failed'
)

func IncCacheHit(op string) {
	cacheHitsTotal.WithLabelValues(norm(op)).Inc()
}

func IncToolInvocation(tool, outcome string) {
	toolInvocationsTotal.WithLabelValues(norm(tool), norm(outcome)).Inc()
}
