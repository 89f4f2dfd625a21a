package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"chancafe-q/backend/internal/audit/domain"
)

const publishTimeout = 5 * time.Second

// KafkaProducer streams activity entries to Kafka as JSON. It satisfies audit.Publisher.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
	log    *zap.Logger
}

// NewKafkaProducer creates a producer that writes activity entries to topic.
// It returns nil when brokers or topic are empty, which disables streaming.
func NewKafkaProducer(brokers []string, topic string, log *zap.Logger) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: writer, topic: topic, log: log.Named("kafka")}
}

// Publish serializes entry as JSON and writes it keyed by user id, so one
// user's events stay ordered within a partition.
func (p *KafkaProducer) Publish(ctx context.Context, entry *domain.ActivityLog) error {
	if p == nil || p.writer == nil || entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   MessageKey(entry),
		Value: payload,
		Time:  entry.CreatedAt,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(entry.Action)},
		},
	}
	writeCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.log.Warn("activity publish failed", zap.String("topic", p.topic), zap.Error(err))
		return err
	}
	return nil
}

// MessageKey returns the partition key for entry: the user id, or the action for anonymous entries.
func MessageKey(entry *domain.ActivityLog) []byte {
	if entry.UserID != nil && *entry.UserID != "" {
		return []byte(*entry.UserID)
	}
	return []byte(entry.Action)
}

// Close closes the Kafka writer. Safe to call on a nil producer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
