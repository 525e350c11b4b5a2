package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/config"
	"github.com/segmentio/kafka-go"
)

// OutboundEventProducer publishes best-effort side-channel events (realtime
// broadcasts, notification fan-out). Delivery failures are reported to the
// caller but must never fail a settlement.
type OutboundEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

func newOutboundEventProducer(logger *slog.Logger, cfg *config.KafkaConfig, topic, purpose string) (*OutboundEventProducer, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka %s topic is not configured", purpose)
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for %s producer: %w", purpose, err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, topic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure %s topic %s exists: %w", purpose, topic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false, // Synchronous so the coordinator can collect delivery errors
		WriteTimeout: cfg.MaxWait,
	}

	return &OutboundEventProducer{
		logger: logger,
		writer: writer,
		topic:  topic,
	}, nil
}

// NewBroadcastProducer creates a producer for realtime broadcast events.
func NewBroadcastProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*OutboundEventProducer, error) {
	return newOutboundEventProducer(logger, cfg, cfg.BroadcastTopic, "broadcast")
}

// NewNotificationProducer creates a producer for notification fan-out events.
func NewNotificationProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*OutboundEventProducer, error) {
	return newOutboundEventProducer(logger, cfg, cfg.NotificationTopic, "notification")
}

func (p *OutboundEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for %s producer: %w", p.topic, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish outbound event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published outbound event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *OutboundEventProducer) Close() error {
	p.logger.Info("Closing outbound event Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close outbound event kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
