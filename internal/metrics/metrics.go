package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeResolved labels attempts that reached RESOLVED.
	OutcomeResolved = "resolved"
	// OutcomeUnderReview labels attempts parked for a human.
	OutcomeUnderReview = "under_review"
	// OutcomeError labels attempts that failed on persistence.
	OutcomeError = "error"
)

var (
	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "incident_replay",
			Name:      "resolutions_total",
			Help:      "Total number of resolution attempts, partitioned by path and outcome.",
		},
		[]string{"path", "outcome"},
	)

	resolutionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "incident_replay",
			Name:      "resolution_seconds",
			Help:      "Resolution attempt latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
)

// Register attaches the engine collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		resolutionsTotal,
		resolutionDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveResolution records one resolution attempt's duration and outcome.
func ObserveResolution(path string, duration time.Duration, outcome string) {
	resolutionsTotal.WithLabelValues(path, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	resolutionDurationSeconds.Observe(duration.Seconds())
}
