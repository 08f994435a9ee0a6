package offers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offers_assemble_total",
		Help: "Offer assemblies by outcome (ok, fallback)",
	}, []string{"outcome"})

	metricFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offers_fallback_total",
		Help: "Degraded offer sets served due to source failure",
	})
)
