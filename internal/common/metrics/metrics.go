package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_turns_completed_total",
			Help: "Total number of dialogue turns by mode and answer source",
		},
		[]string{"mode", "source"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialogue_turn_duration_seconds",
			Help:    "Duration of a full dialogue turn in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	TurnsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dialogue_turns_active",
			Help: "Number of turns currently being processed",
		},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_stage_failures_total",
			Help: "Total number of failed pipeline stages",
		},
		[]string{"stage", "error_code"},
	)

	HybridFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_hybrid_fallbacks_total",
			Help: "Total number of hybrid turns answered from the web instead of the knowledge base",
		},
		[]string{"reason"},
	)

	ActionsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_actions_dispatched_total",
			Help: "Total number of dispatched actions by outcome",
		},
		[]string{"action", "outcome"},
	)

	ActionArgumentViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_action_argument_violations_total",
			Help: "Total number of action calls whose arguments did not match the catalogue schema",
		},
		[]string{"action"},
	)

	WebFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_web_fetches_total",
			Help: "Total number of page fetches by outcome",
		},
		[]string{"outcome"},
	)

	EmbeddingFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_embedding_fallbacks_total",
			Help: "Total number of embeddings served by a fallback provider",
		},
		[]string{"provider"},
	)

	RetrievalScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dialogue_retrieval_score",
			Help:    "Mean similarity of relevant knowledge matches",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)
)
