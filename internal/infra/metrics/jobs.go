package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(readingJobsTotal, itemLatencyMs, fallbacksTotal, jobsSweptTotal) }

var readingJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reading_jobs_total",
		Help: "Total number of reading jobs finished, labeled by terminal status.",
	},
	[]string{"status"}, // 'completed', 'failed', 'cancelled'
)

var itemLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "reading_item_latency_ms",
		Help:    "Per-card generation latency distribution in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 15000, 20000},
	},
	[]string{"stage", "fallback"}, // stage: 'item' | 'summary'
)

var fallbacksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reading_fallbacks_total",
		Help: "Count of deterministic fallbacks used, labeled by stage.",
	},
	[]string{"stage"},
)

var jobsSweptTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "reading_jobs_swept_total",
		Help: "Terminal jobs removed by the retention sweep.",
	},
)

func IncReadingJob(status string) {
	readingJobsTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveItemLatency(stage string, latencyMs int64, fallback bool) {
	lbl := "false"
	if fallback {
		lbl = "true"
	}
	itemLatencyMs.WithLabelValues(norm(stage), lbl).Observe(float64(latencyMs))
	if fallback {
		fallbacksTotal.WithLabelValues(norm(stage)).Inc()
	}
}

func AddJobsSwept(n int) {
	if n > 0 {
		jobsSweptTotal.Add(float64(n))
	}
}
