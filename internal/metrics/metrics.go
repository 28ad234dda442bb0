package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reddit_votes_cast_total",
		Help: "Votes handled by the ledger, by outcome (created, flipped, unchanged).",
	}, []string{"outcome"})

	VoteConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reddit_vote_conflicts_total",
		Help: "Vote transaction attempts aborted with a retryable conflict.",
	})

	VoteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reddit_vote_tx_seconds",
		Help:    "Latency of vote transactions including retries.",
		Buckets: prometheus.DefBuckets,
	})

	FeedPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reddit_feed_pages_total",
		Help: "Feed pages served, by viewer kind.",
	}, []string{"viewer"})

	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reddit_event_publish_failures_total",
		Help: "Domain events that could not be published.",
	}, []string{"topic"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reddit_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by route group.",
	}, []string{"route"})
)
