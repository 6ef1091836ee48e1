package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes journal events, keeping one writer per topic.
// Messages are hashed on their key so events for one journal record stay on a
// single partition in outbox order.
type KafkaProducer struct {
	brokers  []string
	clientID string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

// ErrProducerClosed is returned by WriteMessages after Close.
var ErrProducerClosed = errors.New("kafka producer closed")

// NewKafkaProducer creates a producer for the given brokers.
func NewKafkaProducer(brokers []string, clientID string) *KafkaProducer {
	return &KafkaProducer{
		brokers:  brokers,
		clientID: clientID,
		writers:  make(map[string]*kafka.Writer),
	}
}

// WriteMessages synchronously writes msgs to topic.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	writer, err := p.writer(topic)
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writer(topic string) (*kafka.Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProducerClosed
	}
	if w, ok := p.writers[topic]; ok {
		return w, nil
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		Transport:    &kafka.Transport{ClientID: p.clientID},
	}
	p.writers[topic] = w
	return w, nil
}

// Close flushes and releases every writer. Later writes fail with
// ErrProducerClosed.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var err error
	for topic, w := range p.writers {
		err = errors.Join(err, w.Close())
		delete(p.writers, topic)
	}
	return err
}
