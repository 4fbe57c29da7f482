// Package outbox delivers events recorded in the Postgres outbox table to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/chazstevenson112/Steppr/internal/events"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Dispatcher polls the outbox table, frames each payload with its registry
// schema id and writes it to the event's topic.
type Dispatcher struct {
	pool             *pgxpool.Pool
	producer         messageWriter
	registry         schemaRegistrar
	dlq              *DLQWriter
	logger           *zap.Logger
	pollInterval     time.Duration
	batchSize        int
	schemaIDCache    sync.Map
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		pool:             pool,
		producer:         producer,
		registry:         registry,
		dlq:              NewDLQWriter(pool, DefaultDLQBaseDelay),
		logger:           logger.Named("outbox"),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		shutdownComplete: make(chan struct{}),
	}
}

// WithDLQBaseDelay sets the first backoff step for events the dispatcher
// dead-letters.
func (d *Dispatcher) WithDLQBaseDelay(delay time.Duration) *Dispatcher {
	d.dlq = NewDLQWriter(d.pool, delay)
	return d
}

// Start polls until ctx is cancelled. Run it in its own goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("dispatch batch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Start has returned.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// processBatch claims one batch and settles every claimed row: each is
// either published or written to the DLQ, then marked published.
func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages, err := d.fetchAndClaim(ctx)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	defer observeBatch(start)

	failed := d.deliver(ctx, messages)
	if len(failed) > 0 {
		d.logger.Warn("routing undeliverable events to dlq",
			zap.Int("failed", len(failed)),
			zap.Int("batch", len(messages)),
		)
		if err := d.moveToDLQ(ctx, failed); err != nil {
			return err
		}
	}
	return d.markPublished(ctx, messages)
}

func (d *Dispatcher) fetchAndClaim(ctx context.Context) (messages []Message, err error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil || len(messages) == 0 {
			_ = tx.Rollback(ctx)
		}
	}()

	const query = `SELECT event_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, replay_count
        FROM outbox
        WHERE published_at IS NULL
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, d.batchSize)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.EventID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.SchemaSubject, &msg.PartitionKey, &msg.Payload, &msg.ReplayCount); err != nil {
			rows.Close()
			return nil, err
		}
		messages = append(messages, msg)
		ids = append(ids, msg.EventID)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return messages, nil
}

// deliveryFailure is an event that could not be published, with the reason
// stored on its DLQ entry.
type deliveryFailure struct {
	msg    Message
	reason string
}

// deliver publishes messages grouped by topic. Events without a usable schema
// fail individually; a failed topic write fails every event of that topic.
func (d *Dispatcher) deliver(ctx context.Context, messages []Message) []deliveryFailure {
	var failed []deliveryFailure
	byTopic := make(map[string][]Message)
	records := make(map[string][]kafka.Message)

	for _, msg := range messages {
		record, err := d.encode(ctx, msg)
		if err != nil {
			failed = append(failed, deliveryFailure{msg: msg, reason: err.Error()})
			continue
		}
		byTopic[msg.Topic] = append(byTopic[msg.Topic], msg)
		records[msg.Topic] = append(records[msg.Topic], record)
	}

	for topic, batch := range records {
		if err := d.producer.WriteMessages(ctx, topic, batch...); err != nil {
			reason := fmt.Sprintf("write %s: %v", topic, err)
			for _, msg := range byTopic[topic] {
				failed = append(failed, deliveryFailure{msg: msg, reason: reason})
			}
			continue
		}
		recordPublished(byTopic[topic])
		d.logger.Debug("events published", zap.String("topic", topic), zap.Int("count", len(batch)))
	}
	return failed
}

func (d *Dispatcher) encode(ctx context.Context, msg Message) (kafka.Message, error) {
	meta, ok := schemaCatalog[msg.EventType]
	if !ok {
		return kafka.Message{}, fmt.Errorf("no schema registered for event type %s", msg.EventType)
	}
	schemaID, err := d.schemaID(ctx, msg.SchemaSubject, meta.Schema)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: encodeWireFormat(schemaID, msg.Payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: events.HeaderEventType, Value: []byte(msg.EventType)},
			{Key: events.HeaderSchemaSubject, Value: []byte(msg.SchemaSubject)},
			{Key: events.HeaderAggregateID, Value: []byte(msg.AggregateID)},
			{Key: events.HeaderEventID, Value: []byte(strconv.FormatInt(msg.EventID, 10))},
		},
	}, nil
}

// schemaID resolves and caches the registry id for a subject/schema pair.
func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	cacheKey := subject + "::" + schema
	if cached, ok := d.schemaIDCache.Load(cacheKey); ok {
		return cached.(int), nil
	}
	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, fmt.Errorf("ensure schema %s: %w", subject, err)
	}
	d.schemaIDCache.Store(cacheKey, id)
	return id, nil
}

func (d *Dispatcher) markPublished(ctx context.Context, messages []Message) error {
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}
	_, err := d.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids)
	return err
}

func (d *Dispatcher) moveToDLQ(ctx context.Context, failed []deliveryFailure) error {
	for _, f := range failed {
		if err := d.dlq.Write(ctx, f.msg, f.reason); err != nil {
			return fmt.Errorf("dead-letter event %d: %w", f.msg.EventID, err)
		}
		recordDeadLettered(f.msg)
	}
	return nil
}

// Message is a claimed outbox row.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
	ReplayCount   int
}

// encodeWireFormat prefixes payload with the magic byte and the big-endian schema id.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}

type catalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]catalogEntry{
	events.TypeActivityLogged:    {Schema: activityLoggedSchema},
	events.TypeChallengeCreated:  {Schema: challengeCreatedSchema},
	events.TypeParticipantJoined: {Schema: participantJoinedSchema},
}
