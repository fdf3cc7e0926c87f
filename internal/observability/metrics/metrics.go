// Package metrics exposes the engine's prometheus instruments. The registry
// is served from /metrics on the operational HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type Metrics struct {
	VotesIngested    *prometheus.CounterVec
	DuplicateVotes   *prometheus.CounterVec
	BatchesSubmitted *prometheus.CounterVec
	BatchFailures    *prometheus.CounterVec
	VotesSettled     *prometheus.CounterVec
	GasSavedGwei     prometheus.Counter
	StaleVotesSwept  prometheus.Counter

	SettlementDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		VotesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "votechain_votes_ingested_total",
			Help: "Vote intents accepted at intake.",
		}, []string{"business_id"}),
		DuplicateVotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "votechain_duplicate_votes_total",
			Help: "Intake submissions rejected as duplicates.",
		}, []string{"business_id"}),
		BatchesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "votechain_batches_submitted_total",
			Help: "Settlement batches submitted to the ledger.",
		}, []string{"business_id"}),
		BatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "votechain_batch_failures_total",
			Help: "Settlement batches that failed at the ledger.",
		}, []string{"business_id"}),
		VotesSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "votechain_votes_settled_total",
			Help: "Vote intents marked processed after settlement.",
		}, []string{"business_id"}),
		GasSavedGwei: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "votechain_gas_saved_gwei_total",
			Help: "Estimated gwei saved by batching versus individual settlement.",
		}),
		StaleVotesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "votechain_stale_votes_swept_total",
			Help: "Unprocessed intents deleted by the retention sweeper.",
		}),
		SettlementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "votechain_settlement_duration_seconds",
			Help:    "Wall time of one settlement attempt, selection through state update.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		m.VotesIngested,
		m.DuplicateVotes,
		m.BatchesSubmitted,
		m.BatchFailures,
		m.VotesSettled,
		m.GasSavedGwei,
		m.StaleVotesSwept,
		m.SettlementDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return m, nil
}

func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

var Module = fx.Module("observability.metrics",
	fx.Provide(
		NewRegistry,
		func(reg *prometheus.Registry) prometheus.Registerer { return reg },
		New,
	),
)
