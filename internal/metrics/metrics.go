// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gochat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gochat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gochat_sessions_active",
			Help: "Sessions currently in the Active state",
		},
	)

	UsersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gochat_users_online",
			Help: "Distinct user ids in the presence table",
		},
	)

	// Business metrics
	MessagesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gochat_messages_stored_total",
			Help: "Messages appended to a log",
		},
		[]string{"kind"}, // "broadcast" or "private"
	)

	FriendshipsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gochat_friendships_created_total",
			Help: "New friend edges",
		},
	)

	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gochat_search_queries_total",
			Help: "User search queries",
		},
	)

	InvalidInput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gochat_invalid_input_total",
			Help: "Client actions dropped as invalid input",
		},
		[]string{"event"},
	)

	// Delivery metrics
	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gochat_delivery_failures_total",
			Help: "Outbound events that could not be queued for a session",
		},
		[]string{"event"},
	)
)
