package intent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_classified_total",
		Help: "Intents returned by the classifier",
	}, []string{"intent"})

	metricFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_failures_total",
		Help: "Classifier failures by reason (transport, status, shape)",
	}, []string{"reason"})

	metricLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intent_classify_ms",
		Help:    "Classification round-trip latency (ms)",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 10),
	})
)
