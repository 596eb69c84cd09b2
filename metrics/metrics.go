// Package metrics exposes pipeline Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shortsbot",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"stage"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shortsbot",
		Name:      "runs_total",
		Help:      "Orchestrator runs by outcome.",
	}, []string{"outcome"})

	reclaimFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shortsbot",
		Name:      "reclaim_failures_total",
		Help:      "Releasers that failed during accelerator memory reclaim.",
	})
)

// Run outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeNoWork  = "no_work"
)

// ObserveStage records one stage duration; usable as a timer observer
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// CountRun records one finished run
func CountRun(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
}

// CountReclaimFailures adds n failed releasers
func CountReclaimFailures(n int) {
	if n > 0 {
		reclaimFailures.Add(float64(n))
	}
}
