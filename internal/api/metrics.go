package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "Gateway requests by route and status code",
	}, []string{"route", "code"})

	metricRequestMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_request_duration_ms",
		Help:    "Gateway request duration; turn streams include the full answer",
		Buckets: prometheus.ExponentialBuckets(5, 2, 12),
	}, []string{"route"})

	metricSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_interview_sessions_total",
		Help: "Interview session lifecycle events",
	}, []string{"event"}) // started, ended, completed

	metricTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_turns_total",
		Help: "Turn streams served by result",
	}, []string{"result"}) // ok, fallback, cancelled

	metricAuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_auth_failures_total",
		Help: "Rejected bearer tokens by reason",
	}, []string{"reason"})
)
