package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_evaluations_total",
			Help: "Total number of evaluation history entries written",
		},
		[]string{"change_type"},
	)

	ReEvaluationItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_reevaluation_items_total",
			Help: "Applications processed by re-evaluation batches by outcome",
		},
		[]string{"outcome"},
	)

	ReEvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_reevaluation_duration_seconds",
			Help:    "Duration of re-evaluation batches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	ConfigurationActivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoring_configuration_activations_total",
			Help: "Total number of scoring configuration activations",
		},
	)

	ManualScoresRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_manual_scores_total",
			Help: "Manual criterion scores recorded by evaluators",
		},
		[]string{"evaluation_type"},
	)

	AnalyticsCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_analytics_cache_total",
			Help: "Analytics cache lookups by result",
		},
		[]string{"result"},
	)
)
