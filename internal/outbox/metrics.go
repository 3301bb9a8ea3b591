package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeDelivered    = "delivered"
	outcomeDeadLettered = "dead_lettered"

	actionRequeued       = "requeued"
	actionRetryScheduled = "retry_scheduled"
	actionQuarantined    = "quarantined"
)

var (
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "health_analysis",
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox events handled by the dispatcher, by event type and outcome.",
	}, []string{"event_type", "outcome"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "health_analysis",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time to deliver one claimed outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "health_analysis",
		Subsystem: "dlq",
		Name:      "transitions_total",
		Help:      "Dead-letter entries requeued, rescheduled or quarantined, by event type.",
	}, []string{"event_type", "action"})

	dlqBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "health_analysis",
		Subsystem: "dlq",
		Name:      "pending_entries",
		Help:      "Dead-letter entries that are not quarantined.",
	})
)

func init() {
	prometheus.MustRegister(eventsTotal, batchDuration, dlqTransitions, dlqBacklog)
}

func recordOutcome(messages []Message, outcome string) {
	for _, msg := range messages {
		eventsTotal.WithLabelValues(msg.EventType, outcome).Inc()
	}
}

func recordTransition(entry dlqEntry, action string) {
	dlqTransitions.WithLabelValues(entry.EventType, action).Inc()
}

func refreshBacklog(ctx context.Context, pool *pgxpool.Pool) {
	var pending int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&pending); err != nil {
		return
	}
	dlqBacklog.Set(float64(pending))
}
