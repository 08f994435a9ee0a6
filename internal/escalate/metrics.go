package escalate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricDials = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "escalate_dials_total",
	Help: "Escalation calls attempted, by outcome.",
}, []string{"outcome"})
