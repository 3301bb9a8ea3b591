package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	recommendationsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "health_analysis",
		Subsystem: "recommendations",
		Name:      "generated_total",
		Help:      "Recommendations returned by generate, split by whether the row was created or reused.",
	}, []string{"outcome"})
	generateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "health_analysis",
		Subsystem: "recommendations",
		Name:      "generate_duration_seconds",
		Help:      "Time spent generating recommendations for one request.",
		Buckets:   prometheus.DefBuckets,
	})
	sessionsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "health_analysis",
		Subsystem: "schedules",
		Name:      "sessions_completed_total",
		Help:      "Exercise sessions marked completed.",
	})
	completionRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "health_analysis",
		Subsystem: "schedules",
		Name:      "completion_rejected_total",
		Help:      "Completion attempts rejected because the session was already completed.",
	})
	persistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "health_analysis",
		Subsystem: "persistence",
		Name:      "last_recommendation_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent recommendation written to the store.",
	})
)

func init() {
	prometheus.MustRegister(recommendationsGenerated, generateDuration, sessionsCompleted, completionRejected, persistGauge)
}

// RecordRecommendation counts a returned recommendation as created or reused.
func RecordRecommendation(created bool) {
	if created {
		recommendationsGenerated.WithLabelValues("created").Inc()
		return
	}
	recommendationsGenerated.WithLabelValues("reused").Inc()
}

// ObserveGenerate records how long a generate call took.
func ObserveGenerate(d time.Duration) {
	generateDuration.Observe(d.Seconds())
}

// RecordSessionCompleted counts a completed session.
func RecordSessionCompleted() {
	sessionsCompleted.Inc()
}

// RecordCompletionRejected counts a double completion.
func RecordCompletionRejected() {
	completionRejected.Inc()
}

// RecordRecommendationPersisted updates the persistence watermark gauge.
func RecordRecommendationPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	persistGauge.Set(float64(ts.Unix()))
}
