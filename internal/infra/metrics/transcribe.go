package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		transcriptionJobsTotal,
		transcriptionQueueDepth,
	)
}

var transcriptionJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "transcription_jobs_total",
		Help: "Background transcription jobs by outcome (done/failed/skipped/dropped).",
	},
	[]string{"outcome"},
)

var transcriptionQueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "transcription_queue_depth",
		Help: "Number of transcription jobs waiting or running.",
	},
)

func IncTranscription(outcome string) {
	transcriptionJobsTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddTranscriptionQueued(delta float64) {
	transcriptionQueueDepth.Add(delta)
}
