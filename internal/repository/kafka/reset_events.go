package kafka

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Gatekeep/internal/domain/notification"
)

const (
	fieldLoginKey    = "login_key"
	fieldToken       = "token"
	fieldRequestedAt = "requested_at"
)

// ErrMalformedEvent also matches ErrUndecodable.
var ErrMalformedEvent = fmt.Errorf("malformed reset event: %w", ErrUndecodable)

type protoPublisher interface {
	PublishProto(ctx context.Context, key []byte, m proto.Message) error
}

// ResetEventsKafka hands reset tokens to the e-mail notifier through a topic.
type ResetEventsKafka struct {
	p   protoPublisher
	now func() time.Time
}

func NewResetEventsKafka(p *Producer) *ResetEventsKafka {
	return newResetEvents(p, nil)
}

func newResetEvents(p protoPublisher, now func() time.Time) *ResetEventsKafka {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ResetEventsKafka{p: p, now: now}
}

// SendResetEmail publishes a ResetRequested event keyed by login key, so
// events for one recipient stay ordered within a partition.
func (e *ResetEventsKafka) SendResetEmail(ctx context.Context, loginKey, token string) error {
	msg, err := EncodeResetRequested(notification.ResetRequested{
		LoginKey:    loginKey,
		Token:       token,
		RequestedAt: e.now(),
	})
	if err != nil {
		return err
	}
	return e.p.PublishProto(ctx, []byte(loginKey), msg)
}

func EncodeResetRequested(ev notification.ResetRequested) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldLoginKey:    ev.LoginKey,
		fieldToken:       ev.Token,
		fieldRequestedAt: ev.RequestedAt.UTC().Format(time.RFC3339Nano),
	})
}

func DecodeResetRequested(s *structpb.Struct) (notification.ResetRequested, error) {
	f := s.GetFields()
	loginKey := f[fieldLoginKey].GetStringValue()
	token := f[fieldToken].GetStringValue()
	if loginKey == "" || token == "" {
		return notification.ResetRequested{}, fmt.Errorf("%w: missing %s or %s", ErrMalformedEvent, fieldLoginKey, fieldToken)
	}
	at, err := time.Parse(time.RFC3339Nano, f[fieldRequestedAt].GetStringValue())
	if err != nil {
		return notification.ResetRequested{}, fmt.Errorf("%w: %s: %w", ErrMalformedEvent, fieldRequestedAt, err)
	}
	return notification.ResetRequested{LoginKey: loginKey, Token: token, RequestedAt: at}, nil
}
