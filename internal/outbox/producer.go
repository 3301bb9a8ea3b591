package outbox

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const producerClientID = "health-analysis"

// KafkaProducer publishes synchronously through one writer per topic. Messages are
// partitioned by key hash so events for one recommendation stay ordered.
type KafkaProducer struct {
	addr      net.Addr
	transport *kafka.Transport

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a producer for the given brokers. Writers are opened on first use.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		addr:      kafka.TCP(brokers...),
		transport: &kafka.Transport{ClientID: producerClientID, DialTimeout: 5 * time.Second},
		writers:   make(map[string]*kafka.Writer),
	}
}

// WriteMessages blocks until every message is acknowledged by all in-sync replicas.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writer(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.writers[topic]
	if !ok {
		w = &kafka.Writer{
			Addr:         p.addr,
			Topic:        topic,
			Transport:    p.transport,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
		}
		p.writers[topic] = w
	}
	return w
}

// Close flushes and closes every writer.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs error
	for topic, w := range p.writers {
		errs = errors.Join(errs, w.Close())
		delete(p.writers, topic)
	}
	p.transport.CloseIdleConnections()
	return errs
}
