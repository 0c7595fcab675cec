package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mangatracker"

var (
	sweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweeps_total",
			Help:      "Total sweeps by outcome",
		},
		[]string{"outcome"},
	)

	sweepsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweeps_skipped_total",
			Help:      "Ticks dropped because the previous sweep was still running",
		},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of one full sweep",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	sourceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "source_results_total",
			Help:      "Adapter call outcomes per source",
		},
		[]string{"source", "outcome"},
	)

	releasesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "releases_detected_total",
			Help:      "Release events emitted, labelled by winning source",
		},
		[]string{"provenance"},
	)
)

func recordSweep(outcome string, duration time.Duration) {
	sweepsTotal.WithLabelValues(outcome).Inc()
	sweepDuration.Observe(duration.Seconds())
}

func recordSweepSkipped() {
	sweepsSkipped.Inc()
}

func recordSourceOutcome(source, outcome string) {
	sourceOutcomes.WithLabelValues(source, outcome).Inc()
}

func recordReleaseDetected(provenance string) {
	releasesDetected.WithLabelValues(provenance).Inc()
}
