package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const bootstrapWait = 5 * time.Second

// BootstrapConsumer makes sure the topic exists before joining the group, so
// a fresh cluster does not leave the reader waiting on a missing topic.
func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, logger *zap.Logger) *Consumer {
	ensureBestEffort(ctx, cfg.Brokers, cfg.Topic, logger)
	return NewConsumer(cfg).WithLogger(logger)
}

func BootstrapProducer(ctx context.Context, brokers []string, topic string, logger *zap.Logger) *Producer {
	ensureBestEffort(ctx, brokers, topic, logger)
	return NewProducer(brokers, topic).WithLogger(logger)
}

func ensureBestEffort(ctx context.Context, brokers []string, topic string, logger *zap.Logger) {
	err := EnsureTopic(ctx, brokers, TopicSpec{Name: topic, MaxWait: bootstrapWait}, logger)
	if err != nil && logger != nil {
		logger.Warn("kafka topic bootstrap skipped", zap.String("topic", topic), zap.Error(err))
	}
}
