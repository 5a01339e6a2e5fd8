package phrase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "phrase_flushes_total",
	Help: "Phrases emitted by the aggregator, by flush reason",
}, []string{"reason"}) // sentence, clause, words, idle, explicit
