package tts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ttsSynthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_synthesis_total",
		Help: "ElevenLabs synthesis calls by outcome",
	}, []string{"status"}) // ok, error

	ttsTotalDurationMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_total_duration_ms",
		Help:    "Wall time of a synthesis call including the audio download",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	})

	ttsElevenLabsLatencyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_elevenlabs_latency_ms",
		Help:    "Time until ElevenLabs returned response headers",
		Buckets: prometheus.ExponentialBuckets(20, 1.6, 10),
	})

	ttsAudioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_audio_bytes_total",
		Help: "Synthesized audio bytes received",
	})
)
