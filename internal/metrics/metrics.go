// Package metrics exposes Prometheus instrumentation for the AI provider
// path, the one external dependency worth watching in production.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moodlog_ai_requests_total",
		Help: "Summarization attempts by provider and outcome.",
	}, []string{"provider", "outcome"})

	AIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moodlog_ai_request_duration_seconds",
		Help:    "Summarization latency by provider.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	AITokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moodlog_ai_tokens_total",
		Help: "Tokens consumed by provider and direction.",
	}, []string{"provider", "direction"})
)

// ObserveAICall records one summarization attempt.
func ObserveAICall(provider string, d time.Duration, promptTokens, responseTokens int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	AIRequests.WithLabelValues(provider, outcome).Inc()
	AIDuration.WithLabelValues(provider).Observe(d.Seconds())
	if err == nil {
		AITokens.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
		AITokens.WithLabelValues(provider, "response").Add(float64(responseTokens))
	}
}
