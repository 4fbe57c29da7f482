package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultDLQBaseDelay is the first backoff step for dead-lettered events.
const DefaultDLQBaseDelay = time.Minute

// DLQWriter records events the dispatcher could not publish.
type DLQWriter struct {
	pool      *pgxpool.Pool
	baseDelay time.Duration
}

// NewDLQWriter returns a writer whose replayed events wait baseDelay-based
// backoff before the DLQ manager picks them up again.
func NewDLQWriter(pool *pgxpool.Pool, baseDelay time.Duration) *DLQWriter {
	if baseDelay <= 0 {
		baseDelay = DefaultDLQBaseDelay
	}
	return &DLQWriter{pool: pool, baseDelay: baseDelay}
}

// Write stores msg with reason. An event that already went through the DLQ
// keeps its replay count, so repeated failures still reach quarantine.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	var delay time.Duration
	if msg.ReplayCount > 0 {
		delay = backoff(w.baseDelay, msg.ReplayCount)
	}
	_, err := w.pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NOW() + $11::interval)`,
		msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey,
		msg.ReplayCount, delay,
	)
	return err
}

// backoff doubles base per attempt, capped at one hour.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		return time.Hour
	}
	delay := time.Duration(1<<uint(attempt-1)) * base
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}
