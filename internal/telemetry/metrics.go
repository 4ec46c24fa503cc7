package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_events_recorded_total",
		Help: "Total events appended to the session log",
	}, []string{"name"})

	metricEventsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_events_evicted_total",
		Help: "Events evicted from the bounded log (oldest first)",
	})

	metricForwardDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_forward_dropped_total",
		Help: "Events dropped from the forward queue on overflow",
	})

	metricForwardErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_forward_errors_total",
		Help: "Best-effort sink forwards that failed",
	})

	metricArchiveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_archive_errors_total",
		Help: "Persistent event log writes that failed",
	})
)
