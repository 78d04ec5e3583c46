package client

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"asha-portal/internal/config"
	"asha-portal/internal/util"
)

type KafkaProducer struct {
	Writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaProducer builds the shared writer for security event topics.
func NewKafkaProducer(cfg *config.Config, logger *zap.Logger) *KafkaProducer {
	kafkaConfig := cfg.Kafka

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkaConfig.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchSize:    100,
		BatchBytes:   1048576, // 1MB
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to write kafka messages",
					zap.Error(err),
					zap.Int("message_count", len(messages)),
				)
			}
		},
	}

	util.Info("Kafka producer initialized",
		zap.Strings("brokers", kafkaConfig.Brokers),
	)

	return &KafkaProducer{
		Writer: writer,
		logger: logger,
	}
}

// Publish writes a single message to the given topic.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	})
}

func (p *KafkaProducer) Close() error {
	if p.Writer == nil {
		return nil
	}
	if err := p.Writer.Close(); err != nil {
		p.logger.Error("failed to close kafka writer", zap.Error(err))
		return err
	}
	util.Info("Kafka producer closed")
	return nil
}
