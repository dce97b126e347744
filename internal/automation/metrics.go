package automation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var executions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "trigger_engine",
	Subsystem: "automation",
	Name:      "executions_total",
	Help:      "Executed actions by type and outcome.",
}, []string{"type", "outcome"})
