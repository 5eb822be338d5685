// Package metrics holds the Prometheus collectors for the feed and poll subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

var (
	// MessagesAppended counts chat messages accepted into the stream.
	MessagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "messages_appended_total",
		Help:      "Chat messages appended to the community feed.",
	})

	// FeedFetches counts feed reads by kind ("full" or "incremental").
	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "fetches_total",
		Help:      "Feed reads served, by kind.",
	}, []string{"kind"})

	// Votes counts vote submissions by outcome ("accepted", "already_voted").
	Votes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "polls",
		Name:      "votes_total",
		Help:      "Vote submissions, by outcome.",
	}, []string{"outcome"})

	// RateLimited counts requests rejected by the per-user limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, by route.",
	}, []string{"route"})

	// SubscribersConnected is the number of open push subscriptions on this instance.
	SubscribersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "subscribers",
		Help:      "Connected websocket subscribers.",
	})
)
