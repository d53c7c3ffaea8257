package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resultsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tournament_results_ingested_total",
		Help: "Match result records seen by ingestion, by outcome",
	}, []string{"outcome"})

	matchesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tournament_matches_generated_total",
		Help: "Matches created, by stage",
	}, []string{"stage"})

	playersRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tournament_players_registered",
		Help: "Players currently in the registry",
	})

	publishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tournament_publish_duration_seconds",
		Help:    "Duration of snapshot publication per sink",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})

	publishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tournament_publish_failures_total",
		Help: "Failed snapshot publications per sink",
	}, []string{"sink"})
)
