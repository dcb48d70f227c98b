package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Matchmaking
	QueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchmaking_queue_size",
		Help: "Number of players currently waiting in the matchmaking queue",
	})
	JoinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchmaking_joins_total",
		Help: "Join requests by outcome (searching, match_found, error)",
	}, []string{"outcome"})
	MatchesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchmaking_matches_created_total",
		Help: "The total number of pairings that produced a game",
	})
	PairingRollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchmaking_pairing_rollbacks_total",
		Help: "Pairings aborted after popping players, which were pushed back to the queue",
	})
	StatusPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchmaking_status_polls_total",
		Help: "Status polls by outcome (match_found, searching, not_found)",
	}, []string{"outcome"})
	ExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchmaking_expired_total",
		Help: "Queue entries and undelivered match results evicted by TTL",
	}, []string{"kind"})
	MailboxErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchmaking_mailbox_errors_total",
		Help: "Failures writing a match result to the mailbox",
	})

	// Game lifecycle
	FinalizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "games_finalize_total",
		Help: "End-of-game reports by outcome (updated, conflict, forbidden, not_found, error)",
	}, []string{"outcome"})
	FinalizeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "games_finalize_latency_seconds",
		Help:    "Latency of the finalize transaction including rating updates",
		Buckets: prometheus.DefBuckets,
	})

	// Workers
	ArchiveUploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "games_archive_uploads_total",
		Help: "Finished games uploaded to object storage",
	})
	ArchiveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "games_archive_errors_total",
		Help: "Failed archive uploads",
	})
	ProfileSyncUpsertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "profile_sync_upserts_total",
		Help: "User snapshots upserted from the profile service",
	})
)
