package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTurnStreams = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_turn_streams_total",
		Help: "Turn streams consumed by the client by result",
	}, []string{"result"}) // final, eof, cancelled, error

	metricFirstDeltaMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "llm_first_delta_ms",
		Help:    "Time from turn request to first text delta",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	})

	metricIgnoredFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_ignored_frames_total",
		Help: "Stream frames skipped by the decoder",
	}, []string{"reason"}) // ping, malformed

	metricUpstream = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_upstream_requests_total",
		Help: "Chat completion requests to the model provider by status",
	}, []string{"status"})

	metricUpstreamTTFTMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "llm_upstream_ttft_ms",
		Help:    "Time to first content token from the model provider",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	})
)
