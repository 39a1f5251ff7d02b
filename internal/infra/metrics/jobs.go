// File: internal/infra/metrics/jobs.go
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		compareJobsTotal,
		compareJobDurationMs,
		pipelineStageLatencyMs,
	)
}

var compareJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "compare_jobs_total",
		Help: "Total number of comparison jobs finished, labeled by status and error code.",
	},
	[]string{"status", "code"},
)

var compareJobDurationMs = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "compare_job_duration_ms",
		Help:    "End-to-end comparison job duration in milliseconds.",
		Buckets: []float64{1000, 2500, 5000, 10000, 20000, 40000, 60000, 90000, 120000},
	},
)

var pipelineStageLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pipeline_stage_latency_ms",
		Help:    "Latency distribution per pipeline stage in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	},
	[]string{"stage", "success"},
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncJob(status, code string) {
	if code == "" {
		code = "none"
	}
	compareJobsTotal.WithLabelValues(norm(status), norm(code)).Inc()
}

func ObserveJobDuration(ms int64) {
	compareJobDurationMs.Observe(float64(ms))
}

func ObserveStage(stage string, ms int64, success bool) {
	lbl := "false"
	if success {
		lbl = "true"
	}
	pipelineStageLatencyMs.WithLabelValues(norm(stage), lbl).Observe(float64(ms))
}
