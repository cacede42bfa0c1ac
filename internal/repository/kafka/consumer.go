package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Gatekeep/internal/obs/retry"
)

// Handler processes one message. Returning an error wrapping ErrUndecodable
// skips the remaining attempts.
type Handler func(ctx context.Context, key, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var mDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kafka_messages_dropped_total",
	Help: "Messages committed after the handler gave up on them.",
}, []string{"topic"})

const commitTimeout = 5 * time.Second

type ConsumerConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	GroupID       string        `mapstructure:"group_id"`
	Topic         string        `mapstructure:"topic"`
	FromBeginning bool          `mapstructure:"from_beginning"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	Logger        *zap.Logger   `mapstructure:"-"`
}

// Consumer reads one topic as part of a consumer group and commits each
// message once its handler is done with it.
type Consumer struct {
	reader messageReader
	log    *zap.Logger
	cfg    ConsumerConfig
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           start,
		WatchPartitionChanges: true,
		MinBytes:              1,
		MaxBytes:              10e6,
		MaxWait:               time.Second,
		SessionTimeout:        10 * time.Second,
		RebalanceTimeout:      15 * time.Second,
		HeartbeatInterval:     3 * time.Second,
	}), cfg)
}

func newConsumer(r messageReader, cfg *ConsumerConfig) *Consumer {
	c := &Consumer{reader: r, cfg: *cfg}
	if c.cfg.MaxAttempts <= 0 {
		c.cfg.MaxAttempts = 3
	}
	if c.cfg.RetryBackoff <= 0 {
		c.cfg.RetryBackoff = 500 * time.Millisecond
	}
	log := cfg.Logger
	if log == nil {
		log = zap.L()
	}
	return c.WithLogger(log)
}

func (c *Consumer) WithLogger(l *zap.Logger) *Consumer {
	if l == nil {
		return c
	}
	cp := *c
	cp.log = l.With(
		zap.String("component", "kafka.consumer"),
		zap.String("topic", c.cfg.Topic),
		zap.String("group", c.cfg.GroupID),
	)
	return &cp
}

// Consume runs h for every message until ctx is done. A failing message is
// retried in place up to MaxAttempts times, then committed and counted as
// dropped so one poison message cannot stall its partition. Messages whose
// handling was cut short by ctx are left uncommitted for redelivery.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	c.log.Info("consumer started", zap.Int("max_attempts", c.cfg.MaxAttempts))
	fetchBackoff := retry.ExpoJitter{Base: 200 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.1}
	failures := 0

	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer stopped")
				return ctx.Err()
			}
			wait := fetchBackoff.Next(failures)
			failures++
			if errors.Is(err, io.EOF) {
				c.log.Debug("fetch eof", zap.Duration("backoff", wait))
			} else {
				c.log.Warn("fetch failed", zap.Duration("backoff", wait), zap.Error(err))
			}
			if err := retry.Sleep(ctx, wait); err != nil {
				c.log.Info("consumer stopped")
				return err
			}
			continue
		}
		failures = 0

		if err := c.process(ctx, msg, h); err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer stopped mid-message", zap.Int64("offset", msg.Offset))
				return ctx.Err()
			}
			mDropped.WithLabelValues(msg.Topic).Inc()
			c.log.Error("dropping message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
		c.commit(ctx, msg)
	}
	c.log.Info("consumer stopped")
	return ctx.Err()
}

// process runs h under a consumer span that continues the producer's trace.
func (c *Consumer) process(ctx context.Context, msg kafka.Message, h Handler) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrierFor(&msg.Headers))
	ctx, span := otel.Tracer(tracerName).Start(ctx, msg.Topic+" receive",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(msg.Topic),
			semconv.MessagingOperationReceive,
			semconv.MessagingKafkaConsumerGroup(c.cfg.GroupID),
			semconv.MessagingKafkaDestinationPartition(msg.Partition),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
		),
	)
	defer span.End()

	err := retry.Do(ctx, func() error { return h(ctx, msg.Key, msg.Value) }, retry.Policy{
		Name:     "kafka_consume",
		Attempts: c.cfg.MaxAttempts,
		Backoff:  retry.ExpoJitter{Base: c.cfg.RetryBackoff, Max: 10 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return ctx.Err() == nil && !errors.Is(err, ErrUndecodable)
		},
		OnAttempt: func(i int, err error) {
			c.log.Warn("handler failed", zap.Int64("offset", msg.Offset), zap.Int("attempt", i+1), zap.Error(err))
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
	}
	return err
}

// commit outlives ctx so a handled message is not redelivered just because
// shutdown began.
func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	if err := c.reader.CommitMessages(cctx, msg); err != nil {
		c.log.Warn("commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }
