package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricNegotiations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_negotiations_total",
		Help: "Negotiations created.",
	})
	metricTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_transitions_total",
		Help: "Flow state transitions committed.",
	}, []string{"from", "to"})
	metricTurnsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_turns_rejected_total",
		Help: "Turns rejected because another turn was in flight.",
	})
)
