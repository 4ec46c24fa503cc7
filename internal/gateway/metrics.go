package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_submissions_total",
		Help: "Form submission attempts by outcome",
	}, []string{"outcome"})

	metricFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_fallback_attempts_total",
		Help: "Submissions that fell through to the fallback endpoint",
	})

	metricSubmitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_submit_duration_ms",
		Help:    "Wall time for a full submit including fallback",
		Buckets: prometheus.ExponentialBuckets(50, 1.8, 10),
	})
)
