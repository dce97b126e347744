package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trigger_engine",
		Subsystem: "dispatch",
		Name:      "actions_total",
		Help:      "Dispatch decisions by mode and resulting action type.",
	}, []string{"mode", "type"})
	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trigger_engine",
		Subsystem: "dispatch",
		Name:      "duration_seconds",
		Help:      "Time to reach a dispatch decision, including AI calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})
)
