package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/chazstevenson112/Steppr/internal/events"
)

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	AggregateType string
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeActivityLogged: {
		AggregateType: "activity",
		Topic:         events.TopicActivities,
		SchemaSubject: events.TopicActivities + "-value",
	},
	events.TypeChallengeCreated: {
		AggregateType: "challenge",
		Topic:         events.TopicChallenges,
		SchemaSubject: events.TopicChallenges + "-value",
	},
	events.TypeParticipantJoined: {
		AggregateType: "challenge",
		Topic:         events.TopicChallenges,
		SchemaSubject: events.TopicChallenges + "-value",
	},
}

// outboxEvent is one event recorded alongside a state change.
type outboxEvent struct {
	eventType    string
	aggregateID  string
	partitionKey string
	dedupeKey    string
	payload      any
}

func insertOutbox(ctx context.Context, tx pgx.Tx, event outboxEvent) error {
	meta, ok := eventCatalog[event.eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", event.eventType)
	}
	body, err := json.Marshal(event.payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.eventType, err)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		meta.AggregateType,
		event.aggregateID,
		event.eventType,
		meta.Topic,
		meta.SchemaSubject,
		event.partitionKey,
		body,
		nullIfEmpty(event.dedupeKey),
	)
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
