// Package metrics exposes the prometheus collectors of fill runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Question outcomes.
const (
	OutcomeFilled   = "filled"
	OutcomeVerified = "verified"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Generative request outcomes.
const (
	RequestSuccess      = "success"
	RequestRateLimited  = "rate_limited"
	RequestUnauthorized = "unauthorized"
	RequestError        = "error"
	RequestCacheHit     = "cache_hit"
)

var (
	QuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autofill_questions_total",
			Help: "Questions processed by platform, answer source and outcome",
		},
		[]string{"platform", "source", "outcome"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autofill_runs_total",
			Help: "Fill runs by platform and result",
		},
		[]string{"platform", "result"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autofill_run_duration_seconds",
			Help:    "Duration of fill runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"platform"},
	)

	GenerativeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autofill_generative_requests_total",
			Help: "Generative backend requests by model and outcome",
		},
		[]string{"model", "outcome"},
	)
)

// ObserveQuestion counts one question outcome.
func ObserveQuestion(platform, source, outcome string) {
	if source == "" {
		source = "none"
	}
	QuestionsTotal.WithLabelValues(platform, source, outcome).Inc()
}

// ObserveRun counts a finished run and records its duration.
func ObserveRun(platform, result string, elapsed time.Duration) {
	if platform == "" {
		platform = "none"
	}
	RunsTotal.WithLabelValues(platform, result).Inc()
	RunDuration.WithLabelValues(platform).Observe(elapsed.Seconds())
}

// ObserveGenerative counts one backend request, or a batch answered from the cache.
func ObserveGenerative(model, outcome string) {
	GenerativeRequests.WithLabelValues(model, outcome).Inc()
}
