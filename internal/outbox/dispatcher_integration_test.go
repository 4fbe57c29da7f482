//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/chazstevenson112/Steppr/internal/events"
	"github.com/chazstevenson112/Steppr/internal/persistence/postgres"
)

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	aggregateID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, aggregateID, events.TypeActivityLogged))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5, nil)

	beforeDelivered := testutil.ToFloat64(publishedEvents.WithLabelValues(events.TopicActivities, events.TypeActivityLogged))
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, events.TopicActivities, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)

	record := producer.writes[0].messages[0]
	require.Equal(t, []byte("u1"), record.Key)
	require.Equal(t, byte(0), record.Value[0])
	headers := make(map[string]string)
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, events.TypeActivityLogged, headers[events.HeaderEventType])
	require.Equal(t, events.TopicActivities+"-value", headers[events.HeaderSchemaSubject])

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(publishedEvents.WithLabelValues(events.TopicActivities, events.TypeActivityLogged)), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityLogged)
	require.NotZero(t, eventID)

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, 10*time.Millisecond, 5, nil)

	beforeDLQ := testutil.ToFloat64(deadLetteredEvents.WithLabelValues(events.TopicActivities))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(deadLetteredEvents.WithLabelValues(events.TopicActivities)), 0.0001)

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&dlqCount))
	require.Equal(t, 1, dlqCount)

	manager := NewDLQManager(pool, 3, time.Minute, nil)
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var requeued int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&requeued))
	require.Equal(t, 1, requeued)
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount))
	require.Zero(t, dlqCount)
}

func TestDLQManagerQuarantinesExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	_, err := pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at)
         VALUES (1, $1, $2, '{}', 'boom', 'activity', 'a1', $3, 'u1', 3, NOW())`,
		events.TypeActivityLogged, events.TopicActivities, events.TopicActivities+"-value",
	)
	require.NoError(t, err)

	before := testutil.ToFloat64(dlqOutcomes.WithLabelValues(events.TopicActivities, events.TypeActivityLogged, outcomeQuarantined))
	processed, err := NewDLQManager(pool, 3, time.Minute, nil).RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.InDelta(t, before+1, testutil.ToFloat64(dlqOutcomes.WithLabelValues(events.TopicActivities, events.TypeActivityLogged, outcomeQuarantined)), 0.0001)

	var quarantined int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.Equal(t, 1, quarantined)
}

func TestDispatcherCachesSchemaIDsAcrossBatch(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityLogged))
	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityLogged))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 21}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5, nil)

	beforeDelivered := testutil.ToFloat64(publishedEvents.WithLabelValues(events.TopicActivities, events.TypeActivityLogged))
	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Len(t, producer.writes[0].messages, 2)
	require.Len(t, registry.calls, 1, "schema registry should be invoked once due to cache")
	require.InDelta(t, beforeDelivered+2, testutil.ToFloat64(publishedEvents.WithLabelValues(events.TopicActivities, events.TypeActivityLogged)), 0.0001)
}

func TestDispatcherUnknownSchemaMovesEventsToDLQ(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), "activity.unknown")
	require.NotZero(t, eventID)

	producer := &stubProducer{}
	registry := &stubRegistry{id: 99}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5, nil)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Empty(t, producer.writes, "unknown schema should skip kafka writes")
	require.Empty(t, registry.calls, "schema registry should not be invoked when metadata missing")

	var (
		dlqCount int
		reason   string
	)
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*), MAX(reason) FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&dlqCount, &reason))
	require.Equal(t, 1, dlqCount)
	require.Contains(t, reason, "no schema registered for event type activity.unknown")

	var publishedAt time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT published_at FROM outbox WHERE event_id = $1`, eventID).Scan(&publishedAt))
	require.False(t, publishedAt.IsZero(), "event should still be marked as published")
}

func TestDispatcherIsolatesUndeliverableEvents(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	good := seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityLogged)
	bad := seedOutbox(t, ctx, pool, uuid.NewString(), "activity.unknown")

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 3}, 10*time.Millisecond, 5, nil)
	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Len(t, producer.writes[0].messages, 1)

	var dead []int64
	rows, err := pool.Query(ctx, `SELECT event_id FROM outbox_dlq`)
	require.NoError(t, err)
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		dead = append(dead, id)
	}
	rows.Close()
	require.Equal(t, []int64{bad}, dead)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND event_id IN ($1, $2)`, good, bad).Scan(&pending))
	require.Zero(t, pending)
}

func TestReplayedFailuresReachQuarantine(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityLogged)
	producer := &stubProducer{err: errors.New("broker unavailable")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 5}, 10*time.Millisecond, 5, nil)
	manager := NewDLQManager(pool, 1, time.Minute, nil)

	require.NoError(t, dispatcher.processBatch(ctx))
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var replays int
	require.NoError(t, pool.QueryRow(ctx, `SELECT replay_count FROM outbox WHERE published_at IS NULL`).Scan(&replays))
	require.Equal(t, 1, replays)

	require.NoError(t, dispatcher.processBatch(ctx))
	var (
		retryCount int
		delayed    bool
	)
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT retry_count, next_retry_at > NOW() FROM outbox_dlq WHERE event_id <> $1`, eventID,
	).Scan(&retryCount, &delayed))
	require.Equal(t, 1, retryCount)
	require.True(t, delayed)

	_, err = pool.Exec(ctx, `UPDATE outbox_dlq SET next_retry_at = NOW()`)
	require.NoError(t, err)
	_, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)

	var quarantined int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.Equal(t, 1, quarantined)
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	calls []string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, subject)
	return s.id, nil
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("steppr"),
		postgrescontainer.WithUsername("steppr"),
		postgrescontainer.WithPassword("steppr"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))
	require.NoError(t, postgres.RunMigrations(connStr, nil))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, publishBatchSeconds.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, aggregateID, eventType string) int64 {
	t.Helper()

	payload, err := json.Marshal(events.ActivityLogged{ActivityID: aggregateID, UserID: "u1", ActivityType: "walking", Steps: 10})
	require.NoError(t, err)

	var eventID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7)
         RETURNING event_id`,
		"activity",
		aggregateID,
		eventType,
		events.TopicActivities,
		events.TopicActivities+"-value",
		"u1",
		payload,
	).Scan(&eventID))
	return eventID
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
