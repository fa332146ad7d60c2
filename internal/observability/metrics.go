package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations counts forum operations by name and outcome.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commons",
		Subsystem: "forum",
		Name:      "operations_total",
		Help:      "Forum operations by operation and outcome.",
	}, []string{"op", "outcome"})

	// ReportsResolved counts resolved reports by terminal action.
	ReportsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commons",
		Subsystem: "moderation",
		Name:      "reports_resolved_total",
		Help:      "Resolved reports by action.",
	}, []string{"action"})

	// CheckpointErrors counts failed store writes.
	CheckpointErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "commons",
		Subsystem: "store",
		Name:      "checkpoint_errors_total",
		Help:      "Store checkpoint writes that failed.",
	})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commons",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter by action.",
	}, []string{"action"})
)
