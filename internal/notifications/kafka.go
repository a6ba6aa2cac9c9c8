package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender hands messages to a mail service through a Kafka topic.
type KafkaSender struct {
	writer MessageWriter
}

// NewKafkaSender creates a producer for topic.
func NewKafkaSender(brokers []string, topic string) *KafkaSender {
	return NewKafkaSenderWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	})
}

// NewKafkaSenderWithWriter wraps an existing writer.
func NewKafkaSenderWithWriter(w MessageWriter) *KafkaSender {
	return &KafkaSender{writer: w}
}

// Send publishes msg as JSON keyed by application id, so one applicant's messages stay ordered.
func (k *KafkaSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	key := msg.ApplicationID
	if key == "" {
		key = msg.To
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (k *KafkaSender) Close() error {
	return k.writer.Close()
}
