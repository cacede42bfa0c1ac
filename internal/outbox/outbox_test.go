package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Gatekeep/internal/domain/outbox"
	"github.com/NordCoder/Gatekeep/internal/obs/retry"
)

type noWait struct{}

func (noWait) Next(int) time.Duration { return 0 }

type fakeRepo struct {
	mu      sync.Mutex
	queued  []outbox.Message
	done    []string
	pickErr error
}

func (r *fakeRepo) Enqueue(_ context.Context, m outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued = append(r.queued, m)
	return nil
}

func (r *fakeRepo) PickBatch(_ context.Context, batch int, _ time.Duration) ([]outbox.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pickErr != nil {
		return nil, r.pickErr
	}
	n := min(batch, len(r.queued))
	out := r.queued[:n]
	r.queued = r.queued[n:]
	return out, nil
}

func (r *fakeRepo) MarkSuccess(_ context.Context, keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, keys...)
	return nil
}

type sent struct{ loginKey, token string }

type fakePublisher struct {
	mu       sync.Mutex
	sent     []sent
	failures int
}

func (p *fakePublisher) SendResetEmail(_ context.Context, loginKey, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, sent{loginKey, token})
	return nil
}

func testPolicy(attempts int) retry.Policy {
	return retry.Policy{Name: "outbox_test", Attempts: attempts, Backoff: noWait{}}
}

func resetMessage(t *testing.T, key, loginKey, token string) outbox.Message {
	t.Helper()
	data, err := json.Marshal(ResetRequestedPayload{LoginKey: loginKey, Token: token})
	require.NoError(t, err)
	return outbox.Message{IdempotencyKey: key, Kind: outbox.KindResetRequested, Data: data}
}

func TestEnqueuer_StoresPayloadAndTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{2},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	repo := &fakeRepo{}
	require.NoError(t, Enqueuer{Repo: repo}.EnqueueResetRequested(ctx, "a@x.com", "raw-token"))
	require.NoError(t, Enqueuer{Repo: repo}.EnqueueResetRequested(ctx, "a@x.com", "raw-token"))

	require.Len(t, repo.queued, 2)
	m := repo.queued[0]
	assert.Equal(t, outbox.KindResetRequested, m.Kind)
	assert.NotEmpty(t, m.IdempotencyKey)
	assert.NotEqual(t, m.IdempotencyKey, repo.queued[1].IdempotencyKey)
	assert.Contains(t, m.Traceparent, sc.TraceID().String())

	var p ResetRequestedPayload
	require.NoError(t, json.Unmarshal(m.Data, &p))
	assert.Equal(t, ResetRequestedPayload{LoginKey: "a@x.com", Token: "raw-token"}, p)
}

func TestDispatcher(t *testing.T) {
	pub := &fakePublisher{failures: 2}
	dispatch := NewDispatcher(pub, testPolicy(3))

	h, err := dispatch(outbox.KindResetRequested)
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), resetMessage(t, "k", "a@x.com", "tok").Data))
	assert.Equal(t, []sent{{"a@x.com", "tok"}}, pub.sent)

	assert.Error(t, h(context.Background(), []byte("{not json")))

	_, err = dispatch(outbox.Kind(42))
	assert.Error(t, err)
}

func TestRunner_Tick(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	for _, m := range []outbox.Message{
		resetMessage(t, "k-1", "a@x.com", "t1"),
		{IdempotencyKey: "k-2", Kind: outbox.Kind(42)},
		resetMessage(t, "k-3", "b@x.com", "t3"),
	} {
		require.NoError(t, repo.Enqueue(context.Background(), m))
	}

	r := NewRunner(zap.NewNop(), repo, NewDispatcher(pub, testPolicy(1)), Config{BatchSize: 10})
	assert.Equal(t, 2, r.Tick(context.Background()))

	assert.ElementsMatch(t, []string{"k-1", "k-3"}, repo.done)
	assert.Len(t, pub.sent, 2)
}

func TestRunner_FailedDeliveryIsNotMarked(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{failures: 5}
	require.NoError(t, repo.Enqueue(context.Background(), resetMessage(t, "k-1", "a@x.com", "t1")))

	r := NewRunner(zap.NewNop(), repo, NewDispatcher(pub, testPolicy(2)), Config{})
	assert.Equal(t, 0, r.Tick(context.Background()))
	assert.Empty(t, repo.done)
	assert.Empty(t, pub.sent)
}

func TestRunner_PickError(t *testing.T) {
	repo := &fakeRepo{pickErr: errors.New("db down")}
	r := NewRunner(zap.NewNop(), repo, NewDispatcher(&fakePublisher{}, testPolicy(1)), Config{})
	assert.Equal(t, 0, r.Tick(context.Background()))
}

func TestRunner_StartStop(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	require.NoError(t, repo.Enqueue(context.Background(), resetMessage(t, "k-1", "a@x.com", "t1")))

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(zap.NewNop(), repo, NewDispatcher(pub, testPolicy(1)), Config{Workers: 2, Interval: 5 * time.Millisecond})
	r.Start(ctx)

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.done) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	r.Wait()
}
