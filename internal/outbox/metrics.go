package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DLQ outcomes recorded per entry.
const (
	outcomeRequeued    = "requeued"
	outcomeRetry       = "retry_scheduled"
	outcomeQuarantined = "quarantined"
)

var (
	publishedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steppr",
		Subsystem: "outbox",
		Name:      "events_published_total",
		Help:      "Outbox events written to Kafka by topic and event type.",
	}, []string{"topic", "event_type"})

	deadLetteredEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steppr",
		Subsystem: "outbox",
		Name:      "events_dead_lettered_total",
		Help:      "Outbox events moved to the dead-letter table by topic.",
	}, []string{"topic"})

	publishBatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "steppr",
		Subsystem: "outbox",
		Name:      "publish_batch_duration_seconds",
		Help:      "Duration of one claim, publish and mark cycle.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steppr",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "Dead-letter entries handled by outcome.",
	}, []string{"topic", "event_type", "outcome"})

	dlqBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "steppr",
		Subsystem: "dlq",
		Name:      "backlog",
		Help:      "Dead-letter entries still eligible for replay.",
	})
)

func init() {
	prometheus.MustRegister(publishedEvents, deadLetteredEvents, publishBatchSeconds, dlqOutcomes, dlqBacklog)
}

func observeBatch(started time.Time) {
	publishBatchSeconds.Observe(time.Since(started).Seconds())
}

func recordPublished(messages []Message) {
	for _, msg := range messages {
		publishedEvents.WithLabelValues(msg.Topic, msg.EventType).Inc()
	}
}

func recordDeadLettered(msg Message) {
	deadLetteredEvents.WithLabelValues(msg.Topic).Inc()
}

func recordDLQOutcome(entry dlqEntry, outcome string) {
	dlqOutcomes.WithLabelValues(entry.Topic, entry.EventType, outcome).Inc()
}

// refreshBacklog is best effort; a failed count leaves the gauge unchanged.
func refreshBacklog(ctx context.Context, pool *pgxpool.Pool) {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return
	}
	dlqBacklog.Set(float64(count))
}
