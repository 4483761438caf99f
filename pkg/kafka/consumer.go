package kafka

import (
	"context"
	"errors"
	"time"

	"affiliate-platform/pkg/config"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Handler processes one delivered message. A nil return acknowledges the
// message; a TerminalError routes it to the dead-letter topic and acknowledges;
// any other error negative-acknowledges so the broker redelivers.
type Handler func(ctx context.Context, msg *Message) error

// Consumer runs a single blocking receive loop against one topic with its own
// broker client, so concurrent loops never share a connection.
type Consumer struct {
	name            string
	topic           string
	group           string
	handler         Handler
	cfg             *config.Config
	deadLetter      Publisher
	deadLetterTopic string
}

type ConsumerOption func(*Consumer)

// WithDeadLetter routes terminally failed messages to topic via pub.
func WithDeadLetter(pub Publisher, topic string) ConsumerOption {
	return func(c *Consumer) {
		c.deadLetter = pub
		c.deadLetterTopic = topic
	}
}

func NewConsumer(cfg *config.Config, name, topic, group string, handler Handler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		name:    name,
		topic:   topic,
		group:   group,
		handler: handler,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run blocks until ctx is cancelled. Offsets are committed manually: a commit
// is the acknowledge, a seek back to the message offset is the
// negative-acknowledge.
func (c *Consumer) Run(ctx context.Context) error {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  c.cfg.Kafka.Addrs,
		"group.id":           c.group,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return err
	}
	defer consumer.Close()

	if err := consumer.SubscribeTopics([]string{c.topic}, nil); err != nil {
		return err
	}

	zap.L().Info("[Kafka] Consumer subscribed",
		zap.String("consumer", c.name),
		zap.String("topic", c.topic),
		zap.String("group", c.group),
	)

	timeout := c.cfg.Kafka.ReceiveTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("[Kafka] Consumer shutting down", zap.String("consumer", c.name))
			return nil
		default:
		}

		raw, err := consumer.ReadMessage(timeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			zap.L().Error("[Kafka] Receive failed",
				zap.String("consumer", c.name), zap.Error(err))
			continue
		}

		msg := &Message{
			ID:        messageID(raw.TopicPartition),
			Topic:     c.topic,
			Key:       raw.Key,
			Value:     raw.Value,
			Timestamp: raw.Timestamp,
		}

		if err := c.handler(ctx, msg); err != nil {
			if IsTerminal(err) {
				c.routeDeadLetter(ctx, msg, err)
				c.ack(consumer, raw)
				continue
			}

			zap.L().Error("[Kafka] Handler failed, negative-acknowledging",
				zap.String("consumer", c.name),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			c.nack(consumer, raw)
			continue
		}

		c.ack(consumer, raw)
	}
}

func (c *Consumer) ack(consumer *kafka.Consumer, raw *kafka.Message) {
	if _, err := consumer.CommitMessage(raw); err != nil {
		zap.L().Error("[Kafka] Commit failed",
			zap.String("consumer", c.name),
			zap.String("message_id", messageID(raw.TopicPartition)),
			zap.Error(err),
		)
	}
}

func (c *Consumer) nack(consumer *kafka.Consumer, raw *kafka.Message) {
	seekTo := kafka.TopicPartition{
		Topic:     raw.TopicPartition.Topic,
		Partition: raw.TopicPartition.Partition,
		Offset:    raw.TopicPartition.Offset,
	}
	if err := consumer.Seek(seekTo, 0); err != nil {
		zap.L().Error("[Kafka] Seek failed, message will redeliver on rebalance",
			zap.String("consumer", c.name), zap.Error(err))
	}
}

func (c *Consumer) routeDeadLetter(ctx context.Context, msg *Message, cause error) {
	zap.L().Warn("[Kafka] Terminal failure, acknowledging",
		zap.String("consumer", c.name),
		zap.String("message_id", msg.ID),
		zap.Error(cause),
	)

	if c.deadLetter == nil || c.deadLetterTopic == "" {
		return
	}

	if err := c.deadLetter.Publish(ctx, c.deadLetterTopic, msg.Key, msg.Value); err != nil {
		zap.L().Error("[Kafka] Dead-letter publish failed",
			zap.String("consumer", c.name),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

// RegisterConsumer attaches a consumer loop to the fx lifecycle, one goroutine
// per consumer. Stop cancels the loop and waits for it to drain.
func RegisterConsumer(lc fx.Lifecycle, c *Consumer) {
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				if err := c.Run(loopCtx); err != nil {
					zap.L().Error("[Kafka] Consumer stopped with error",
						zap.String("consumer", c.name), zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
