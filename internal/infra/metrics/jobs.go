package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobsTotal, jobDurationSeconds) }

var jobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_total",
		Help: "Generation jobs reaching a terminal state, by kind and state.",
	},
	[]string{"kind", "state"}, // 'succeeded', 'failed', 'timed_out'
)

var jobDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "generation_job_duration_seconds",
		Help:    "Wall-clock time from submission to terminal state.",
		Buckets: []float64{5, 15, 30, 60, 120, 240, 480, 720, 900},
	},
	[]string{"kind"},
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncJob(kind, state string) {
	jobsTotal.WithLabelValues(norm(kind), norm(state)).Inc()
}

func ObserveJobDuration(kind string, seconds float64) {
	jobDurationSeconds.WithLabelValues(norm(kind)).Observe(seconds)
}
