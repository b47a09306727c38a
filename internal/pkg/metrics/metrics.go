package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "huddle_connections_active",
			Help: "Currently open websocket connections",
		},
	)

	// Auth metrics
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huddle_logins_total",
			Help: "Total login attempts",
		},
		[]string{"result"}, // "registered", "verified", "invalid_password"
	)

	SessionResumesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huddle_session_resumes_total",
			Help: "Total session resumption attempts",
		},
		[]string{"result"}, // "ok" or "invalid"
	)

	// Chat metrics
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huddle_messages_total",
			Help: "Total chat messages broadcast",
		},
		[]string{"kind"}, // "message" or "system"
	)

	TypingEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huddle_typing_events_total",
			Help: "Total typing start/stop events processed",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huddle_rate_limit_hits_total",
			Help: "Total websocket connection attempts rejected by the IP limiter",
		},
	)
)
