// Package producer publishes alarm notifications to Kafka.
package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/abstracta/skywalking-copilot/internal/telemetry"
	"github.com/abstracta/skywalking-copilot/internal/telemetry/domain"
)

// writeTimeout bounds a single Kafka write.
const writeTimeout = 5 * time.Second

// messageWriter is the part of *kafka.Writer used by KafkaProducer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ telemetry.EventEmitter = (*KafkaProducer)(nil)

// KafkaProducer is a telemetry.EventEmitter writing to a Kafka topic with segmentio/kafka-go.
type KafkaProducer struct {
	writer messageWriter
	topic  string
}

// NewKafkaProducer creates a Kafka producer that writes notifications to the given topic.
// Returns nil when brokers or topic are empty (publishing disabled). Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// Emit serializes the notification as JSON and writes it to the Kafka topic, keyed by session so a
// session's notifications stay ordered within a partition.
func (p *KafkaProducer) Emit(ctx context.Context, event *domain.AlarmNotification) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	})
}

// Close closes the Kafka writer. Safe to call multiple times and on a nil producer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
