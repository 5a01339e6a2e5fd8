package stt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricAudioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_audio_bytes_total",
		Help: "Total audio bytes written to the recognizer",
	})

	metricFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_frames_total",
		Help: "Total audio frames written to the recognizer",
	})

	metricConnectMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stt_connect_ms",
		Help:    "Time to establish the recognizer connection (ms)",
		Buckets: prometheus.ExponentialBuckets(10, 1.8, 10),
	})

	metricTTFTMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stt_ttft_ms",
		Help:    "Time from connect to first partial transcript (ms)",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 10),
	})

	gaugeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stt_sessions_active",
		Help: "Open recognizer connections",
	})

	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_events_total",
		Help: "Recognizer events delivered by kind",
	}, []string{"kind"}) // partial, final, error, info

	// Transcript handling metrics
	metricFinalEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_final_emitted_total",
		Help: "Final transcripts emitted by source (provider, utterance_end, interim_fallback)",
	}, []string{"source"})

	metricEmptyFinalSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_empty_final_skipped_total",
		Help: "Empty final transcripts skipped",
	})

	metricMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_malformed_frames_total",
		Help: "Frames that were not valid JSON and were ignored",
	})

	// Event channel drops
	metricEventDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_event_drops_total",
		Help: "Partial events dropped due to slow consumer (channel backpressure)",
	})

	metricTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_tokens_minted_total",
		Help: "Ephemeral recognizer tokens minted by provider and status",
	}, []string{"provider", "status"})
)
