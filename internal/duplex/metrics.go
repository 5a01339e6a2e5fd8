package duplex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricBargeIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duplex_barge_in_total",
		Help: "User speech that interrupted the assistant",
	})

	metricTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duplex_state_transitions_total",
		Help: "Controller state transitions",
	}, []string{"from", "to"})

	metricTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duplex_llm_turns_total",
		Help: "Assistant turns by result",
	}, []string{"result"}) // committed, empty, failed, cancelled

	metricFirstDeltaMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "duplex_first_delta_ms",
		Help:    "Time from a final user transcript to the first assistant delta",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	})

	metricEventDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duplex_event_drops_total",
		Help: "Controller events dropped because the consumer fell behind",
	})
)
