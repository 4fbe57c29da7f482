package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer keeps one synchronous writer per topic. Records are
// partitioned by key so a user's events stay ordered.
type KafkaProducer struct {
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

// NewKafkaProducer creates a KafkaProducer for brokers.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes msgs to topic and waits for all in-sync replicas.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	writer, err := p.writer(topic)
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, msgs...)
}

var errProducerClosed = errors.New("kafka producer closed")

func (p *KafkaProducer) writer(topic string) (*kafka.Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errProducerClosed
	}
	if w, ok := p.writers[topic]; ok {
		return w, nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 10 * time.Millisecond,
	}
	p.writers[topic] = w
	return w, nil
}

// Close flushes and releases every writer.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var result error
	for topic, w := range p.writers {
		result = errors.Join(result, w.Close())
		delete(p.writers, topic)
	}
	return result
}
