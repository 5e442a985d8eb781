package publish

import (
	"context"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/eipdev/eipdev-go/pkg/config"
)

// Kafka publishes messages to a Kafka topic, keyed by assembly or
// connection id.
type Kafka struct {
	config config.KafkaConfig

	mu     sync.RWMutex
	writer *kafka.Writer
}

// NewKafka creates a Kafka publisher.
func NewKafka(cfg config.KafkaConfig) *Kafka {
	return &Kafka{config: cfg}
}

// Name returns "kafka".
func (p *Kafka) Name() string { return "kafka" }

// Start checks that the first broker is reachable and creates the writer.
func (p *Kafka) Start(ctx context.Context) error {
	conn, err := (&kafka.Dialer{}).DialContext(ctx, "tcp", p.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.config.Brokers[0], err)
	}
	conn.Close()

	p.mu.Lock()
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(p.config.Brokers...),
		Topic:        p.config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	p.mu.Unlock()
	return nil
}

// Publish writes msg synchronously.
func (p *Kafka) Publish(ctx context.Context, msg Message) error {
	p.mu.RLock()
	w := p.writer
	p.mu.RUnlock()
	if w == nil {
		return ErrNotConnected
	}

	km, err := kafkaMessage(msg)
	if err != nil {
		return err
	}
	if err := w.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	return nil
}

// Stop closes the writer.
func (p *Kafka) Stop() error {
	p.mu.Lock()
	w := p.writer
	p.writer = nil
	p.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}

func kafkaMessage(msg Message) (kafka.Message, error) {
	value, err := msg.Encode()
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(msg.Key()),
		Value: value,
		Time:  msg.Timestamp,
	}, nil
}

var _ Publisher = (*Kafka)(nil)
