package speaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPhrases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speaker_phrases_total",
		Help: "Phrases handled by the playback pump by result",
	}, []string{"result"}) // played, synth_error, play_error, cancelled

	metricMerges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speaker_tail_merges_total",
		Help: "Phrases merged into the queue tail under backpressure",
	})

	metricStops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speaker_stops_total",
		Help: "Stop calls that interrupted playback or dropped queued phrases",
	})

	metricSynthMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speaker_synthesis_ms",
		Help:    "Time to obtain audio for one phrase",
		Buckets: prometheus.ExponentialBuckets(20, 1.6, 12),
	})
)
