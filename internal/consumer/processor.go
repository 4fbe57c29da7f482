// Package consumer reads Steppr events from Kafka and keeps derived state current.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/chazstevenson112/Steppr/internal/events"
)

// Reader is the subset of *kafka.Reader the processor uses.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler applies one decoded event.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is a record published by the outbox dispatcher, with its wire
// framing removed.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	AggregateID   string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// DefaultMaxAttempts bounds handler retries for one record.
const DefaultMaxAttempts = 3

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRetryDelay sets the pause between fetch or handler retries.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Processor) {
		p.retryDelay = d
	}
}

// WithMaxAttempts sets how many times a record is handed to the handler
// before it is committed and skipped.
func WithMaxAttempts(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// Processor fetches records, decodes the outbox framing and hands each
// record to a Handler. A record is committed once it was handled, once it
// proved malformed, or once the handler exhausted its attempts.
type Processor struct {
	reader      Reader
	handler     Handler
	logger      *zap.Logger
	retryDelay  time.Duration
	maxAttempts int
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:      reader,
		handler:     handler,
		logger:      zap.NewNop(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes records until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Warn("fetch failed", zap.Error(err))
			p.pause(ctx)
			continue
		}

		if err := p.process(ctx, record); err != nil {
			return err
		}
	}
}

// process returns an error only when ctx ended mid-record; the record is
// then left uncommitted for the next member of the group.
func (p *Processor) process(ctx context.Context, record kafka.Message) error {
	event, err := decodeMessage(record)
	if err != nil {
		p.logger.Warn("skipping malformed record",
			zap.String("topic", record.Topic),
			zap.Int("partition", record.Partition),
			zap.Int64("offset", record.Offset),
			zap.Error(err),
		)
		recordResult(record.Topic, "", resultMalformed)
		p.commit(ctx, record)
		return nil
	}

	for attempt := 1; ; attempt++ {
		err := p.handler.Handle(ctx, event)
		if err == nil {
			if p.commit(ctx, record) {
				recordHandled(event, time.Now())
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		recordResult(event.Topic, event.EventType, resultFailed)
		fields := []zap.Field{
			zap.String("event_type", event.EventType),
			zap.String("aggregate_id", event.AggregateID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		}
		if attempt >= p.maxAttempts {
			p.logger.Error("giving up on record", fields...)
			p.commit(ctx, record)
			return nil
		}
		p.logger.Warn("handler failed, retrying", fields...)
		p.pause(ctx)
	}
}

func (p *Processor) commit(ctx context.Context, record kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, record); err != nil {
		p.logger.Warn("commit failed",
			zap.String("topic", record.Topic),
			zap.Int64("offset", record.Offset),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (p *Processor) pause(ctx context.Context) {
	if p.retryDelay <= 0 {
		return
	}
	t := time.NewTimer(p.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) < 5 {
		return Message{}, fmt.Errorf("record too short: %d bytes", len(msg.Value))
	}
	if msg.Value[0] != 0 {
		return Message{}, fmt.Errorf("unknown magic byte %d", msg.Value[0])
	}

	eventType, ok := headerValue(msg, events.HeaderEventType)
	if !ok {
		return Message{}, errors.New("missing event_type header")
	}
	aggregateID, _ := headerValue(msg, events.HeaderAggregateID)
	schemaSubject, _ := headerValue(msg, events.HeaderSchemaSubject)

	schemaID := int(binary.BigEndian.Uint32(msg.Value[1:5]))
	payload := json.RawMessage(append([]byte(nil), msg.Value[5:]...))

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     string(eventType),
		AggregateID:   string(aggregateID),
		SchemaSubject: string(schemaSubject),
		SchemaID:      schemaID,
		Payload:       payload,
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
