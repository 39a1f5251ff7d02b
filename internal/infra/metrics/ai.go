package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		inferenceLatencyMs,
		mediaUploadsTotal,
		schemaRetriesTotal,
	)
}

var inferenceLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "inference_latency_ms",
		Help:    "Model inference call latency distribution in milliseconds.",
		Buckets: []float64{500, 1000, 2500, 5000, 10000, 20000, 40000, 60000, 90000},
	},
	[]string{"model", "success"},
)

var mediaUploadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "media_uploads_total",
		Help: "Media transfers to the inference provider, labeled by outcome.",
	},
	[]string{"outcome"}, // 'ready', 'failed', 'timeout'
)

var schemaRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "schema_retries_total",
		Help: "Count of abbreviated-prompt retries after a validation failure.",
	},
)

func ObserveInference(model string, latencyMs int64, success bool) {
	inferenceLatencyMs.WithLabelValues(norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncMediaUpload(outcome string) {
	mediaUploadsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncSchemaRetry() {
	schemaRetriesTotal.Inc()
}
