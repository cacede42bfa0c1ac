package notifier

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	kafkax "github.com/NordCoder/Gatekeep/internal/repository/kafka"
)

type subscriber interface {
	Consume(ctx context.Context, h kafkax.Handler) error
}

type Controller struct {
	Log *zap.Logger
	Sub subscriber
	UC  *Handler
}

// Run consumes reset events until ctx is done. Malformed events come back as
// kafkax.ErrUndecodable so the consumer commits them without a retry.
func (c *Controller) Run(ctx context.Context) error {
	handler := kafkax.ProtoHandler(
		func() *structpb.Struct { return &structpb.Struct{} },
		func(ctx context.Context, _ []byte, msg *structpb.Struct) error {
			ev, err := kafkax.DecodeResetRequested(msg)
			if err != nil {
				mErrors.Inc()
				c.Log.Warn("reset event: malformed message", zap.Error(err))
				return err
			}
			return c.UC.HandleResetRequested(ctx, ev)
		},
	)
	if err := c.Sub.Consume(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		c.Log.Warn("kafka consume", zap.Error(err))
		return err
	}
	return nil
}
