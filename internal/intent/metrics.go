package intent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trigger_engine",
		Subsystem: "intent",
		Name:      "cache_hits_total",
		Help:      "Classification cache hits.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trigger_engine",
		Subsystem: "intent",
		Name:      "cache_misses_total",
		Help:      "Classification cache misses.",
	})
	classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trigger_engine",
		Subsystem: "intent",
		Name:      "classifications_total",
		Help:      "Classifications by resulting intent and source.",
	}, []string{"intent", "source"})
)

func recordClassification(res *Result) {
	source := "ai"
	if res.FallbackUsed {
		source = "heuristic"
	}
	classifications.WithLabelValues(string(res.Intent), source).Inc()
}
