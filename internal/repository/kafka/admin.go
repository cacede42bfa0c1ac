package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/NordCoder/Gatekeep/internal/obs/retry"
)

var ErrNoBrokers = errors.New("no kafka brokers configured")

type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	MaxWait           time.Duration
}

func (s TopicSpec) withDefaults() TopicSpec {
	s.NumPartitions = max(s.NumPartitions, 1)
	s.ReplicationFactor = max(s.ReplicationFactor, 1)
	if s.MaxWait <= 0 {
		s.MaxWait = 5 * time.Second
	}
	return s
}

// EnsureTopic creates the topic through the cluster controller when it is
// missing, then waits up to MaxWait for its partitions to be visible. An
// "already exists" answer from the controller is expected and only logged.
// Not seeing the partitions in time is logged too, since producers may still
// auto-create the topic.
func EnsureTopic(ctx context.Context, brokers []string, spec TopicSpec, log *zap.Logger) error {
	if len(brokers) == 0 {
		return ErrNoBrokers
	}
	if log == nil {
		log = zap.NewNop()
	}
	spec = spec.withDefaults()
	log = log.With(zap.String("topic", spec.Name))

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		log.Warn("kafka dial failed", zap.String("broker", brokers[0]), zap.Error(err))
		return fmt.Errorf("dial %s: %w", brokers[0], err)
	}
	defer conn.Close()

	if err := createTopic(ctx, conn, spec); err != nil {
		log.Debug("create topic", zap.Error(err))
	}

	waitCtx, cancel := context.WithTimeout(ctx, spec.MaxWait)
	defer cancel()
	for {
		parts, err := conn.ReadPartitions(spec.Name)
		if err == nil && len(parts) > 0 {
			log.Info("topic ready", zap.Int("partitions", len(parts)))
			return nil
		}
		if serr := retry.Sleep(waitCtx, 200*time.Millisecond); serr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("topic not confirmed ready", zap.Duration("waited", spec.MaxWait))
			return nil
		}
	}
}

// createTopic must talk to the controller broker; any other broker rejects
// CreateTopics.
func createTopic(ctx context.Context, conn *kafka.Conn, spec TopicSpec) error {
	ctrl, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("lookup controller: %w", err)
	}
	addr := net.JoinHostPort(ctrl.Host, strconv.Itoa(ctrl.Port))
	cc, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial controller %s: %w", addr, err)
	}
	defer cc.Close()

	return cc.CreateTopics(kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.NumPartitions,
		ReplicationFactor: spec.ReplicationFactor,
	})
}
