package notifier

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Gatekeep/internal/domain/notification"
	"github.com/NordCoder/Gatekeep/internal/obs/retry"
	kafkax "github.com/NordCoder/Gatekeep/internal/repository/kafka"
)

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []sentMail
	failures int
	err      error
}

func (s *fakeSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("smtp 451 try again")
	}
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type noWait struct{}

func (noWait) Next(int) time.Duration { return 0 }

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newHandler(out notification.EmailSender) *Handler {
	p := retry.DefaultDeliveryPolicy("test_mail", nil, ErrHeaderInjection)
	p.Backoff = noWait{}
	return &Handler{
		Out:      out,
		Clock:    notification.ClockFunc(func() time.Time { return testNow }),
		ResetURL: "https://app.example.com/reset",
		LinkTTL:  time.Hour,
		Retry:    p,
	}
}

func TestComposeResetEmail(t *testing.T) {
	body, err := ComposeResetEmail("https://app.example.com/reset", "abc-_123", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, body, "https://app.example.com/reset?token=abc-_123")
	assert.Contains(t, body, "valid for 1 hour")

	body, err = ComposeResetEmail("https://app.example.com/reset?lang=en", "t", 90*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, body, "lang=en")
	assert.Contains(t, body, "token=t")
	assert.Contains(t, body, "90 minutes")

	_, err = ComposeResetEmail("/relative", "t", time.Hour)
	assert.Error(t, err)
}

func TestResetLink_EscapesToken(t *testing.T) {
	link, err := resetLink("https://app.example.com/reset", "a+b/c=")
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "a+b/c=", u.Query().Get("token"))
}

func TestHandler_SendsResetMail(t *testing.T) {
	out := &fakeSender{}
	h := newHandler(out)

	err := h.HandleResetRequested(context.Background(), notification.ResetRequested{
		LoginKey: "a@x.com", Token: "tok", RequestedAt: testNow.Add(-time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, out.sent, 1)
	assert.Equal(t, "a@x.com", out.sent[0].to)
	assert.Equal(t, resetSubject, out.sent[0].subject)
	assert.Contains(t, out.sent[0].body, "?token=tok")
}

func TestHandler_RetriesTransientFailures(t *testing.T) {
	out := &fakeSender{failures: 2}
	h := newHandler(out)

	err := h.HandleResetRequested(context.Background(), notification.ResetRequested{
		LoginKey: "a@x.com", Token: "tok", RequestedAt: testNow,
	})
	require.NoError(t, err)
	assert.Len(t, out.sent, 1)
}

func TestHandler_PermanentFailureNotRetried(t *testing.T) {
	out := &fakeSender{err: ErrHeaderInjection}
	h := newHandler(out)

	err := h.HandleResetRequested(context.Background(), notification.ResetRequested{
		LoginKey: "a@x.com", Token: "tok", RequestedAt: testNow,
	})
	assert.ErrorIs(t, err, ErrHeaderInjection)
}

func TestHandler_SkipsExpiredEvents(t *testing.T) {
	out := &fakeSender{}
	h := newHandler(out)

	err := h.HandleResetRequested(context.Background(), notification.ResetRequested{
		LoginKey: "a@x.com", Token: "tok", RequestedAt: testNow.Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Empty(t, out.sent)
}

func TestDirect_SendResetEmail(t *testing.T) {
	out := &fakeSender{}
	d := Direct{H: newHandler(out)}

	require.NoError(t, d.SendResetEmail(context.Background(), "a@x.com", "tok"))
	require.Len(t, out.sent, 1)
	assert.Equal(t, "a@x.com", out.sent[0].to)
}

type fakeSubscriber struct {
	values [][]byte
	errs   []error
}

func (s *fakeSubscriber) Consume(ctx context.Context, h kafkax.Handler) error {
	for _, v := range s.values {
		s.errs = append(s.errs, h(ctx, nil, v))
	}
	return context.Canceled
}

func TestController_Run(t *testing.T) {
	good, err := kafkax.EncodeResetRequested(notification.ResetRequested{LoginKey: "a@x.com", Token: "tok", RequestedAt: testNow})
	require.NoError(t, err)
	goodRaw, err := proto.Marshal(good)
	require.NoError(t, err)

	bad, err := structpb.NewStruct(map[string]any{"login_key": "a@x.com"})
	require.NoError(t, err)
	badRaw, err := proto.Marshal(bad)
	require.NoError(t, err)

	out := &fakeSender{}
	sub := &fakeSubscriber{values: [][]byte{goodRaw, badRaw}}
	c := &Controller{Log: zapNop(), Sub: sub, UC: newHandler(out)}

	require.NoError(t, c.Run(context.Background()))
	require.Len(t, sub.errs, 2)
	assert.NoError(t, sub.errs[0])
	assert.ErrorIs(t, sub.errs[1], kafkax.ErrUndecodable)
	require.Len(t, out.sent, 1)
	assert.Contains(t, out.sent[0].body, "token=tok")
}

func TestController_DeliveryFailureIsRetryable(t *testing.T) {
	good, err := kafkax.EncodeResetRequested(notification.ResetRequested{LoginKey: "a@x.com", Token: "tok", RequestedAt: testNow})
	require.NoError(t, err)
	raw, err := proto.Marshal(good)
	require.NoError(t, err)

	sub := &fakeSubscriber{values: [][]byte{raw}}
	c := &Controller{Log: zapNop(), Sub: sub, UC: newHandler(&fakeSender{err: errors.New("down")})}

	require.NoError(t, c.Run(context.Background()))
	require.Len(t, sub.errs, 1)
	assert.Error(t, sub.errs[0])
	assert.NotErrorIs(t, sub.errs[0], kafkax.ErrUndecodable)
}
