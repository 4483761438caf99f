package kafka

import (
	"context"
	"fmt"
	"time"

	"affiliate-platform/pkg/config"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("kafka",
	fx.Provide(NewPublisher),
)

// Message is one delivered record. ID is the broker-assigned coordinate of the
// record (topic, partition, offset) and is stable across redeliveries, which is
// what makes it usable as an idempotency key.
type Message struct {
	ID        string
	Topic     string
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

func messageID(tp kafka.TopicPartition) string {
	topic := ""
	if tp.Topic != nil {
		topic = *tp.Topic
	}
	return fmt.Sprintf("%s[%d]@%d", topic, tp.Partition, tp.Offset)
}

// Publisher publishes a record and waits for the broker delivery report.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type publisher struct {
	producer *kafka.Producer
}

func NewPublisher(lc fx.Lifecycle, cfg *config.Config) (Publisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Kafka.Addrs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	zap.L().Info("[Kafka] Producer connected", zap.String("addrs", cfg.Kafka.Addrs))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			producer.Flush(5000)
			producer.Close()
			return nil
		},
	})

	return &publisher{producer: producer}, nil
}

func (p *publisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	deliveries := make(chan kafka.Event, 1)

	err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          value,
	}, deliveries)
	if err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}

	select {
	case ev := <-deliveries:
		msg, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event for %s: %v", topic, ev)
		}
		if msg.TopicPartition.Error != nil {
			return fmt.Errorf("delivery failed for %s: %w", topic, msg.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
