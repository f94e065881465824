package analyzer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docscan_analyzer_frames_total",
			Help: "Frames seen by the live analyzer",
		},
		[]string{"outcome"}, // outcome: submitted, dropped, found, empty, failed
	)

	analysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docscan_analyzer_duration_seconds",
			Help:    "Time spent analyzing a single frame",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

func recordOutcome(outcome string) {
	framesTotal.WithLabelValues(outcome).Inc()
}
