package kafka

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// ErrUndecodable marks a payload that can never be handled. The consumer
// commits such messages without retrying them.
var ErrUndecodable = errors.New("undecodable kafka message")

// ProtoHandler adapts a typed handler to Handler. newMsg must return a fresh
// message on every call.
func ProtoHandler[M proto.Message](newMsg func() M, handle func(context.Context, []byte, M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		msg := newMsg()
		if err := proto.Unmarshal(value, msg); err != nil {
			return fmt.Errorf("%w: %w", ErrUndecodable, err)
		}
		return handle(ctx, key, msg)
	}
}
