package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/NordCoder/Gatekeep/internal/domain/outbox"
	"github.com/NordCoder/Gatekeep/internal/obs/retry"
)

// ResetRequestedPayload is stored in the outbox until the relay delivers it.
type ResetRequestedPayload struct {
	LoginKey string `json:"login_key"`
	Token    string `json:"token"`
}

var (
	handlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers, retries included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	handlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Outbox handler failures after retries.",
	}, []string{"kind"})
)

// ResetPublisher is the downstream of reset events, e.g. the Kafka producer.
type ResetPublisher interface {
	SendResetEmail(ctx context.Context, loginKey, token string) error
}

func instrument(kind outbox.Kind, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	if pol.Name == "" {
		pol.Name = "outbox_" + kind.String()
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle")
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		handlerLatency.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			handlerErrors.WithLabelValues(kind.String()).Inc()
		}
		return err
	}
}

// NewDispatcher routes outbox kinds to their handlers, each wrapped in pol.
func NewDispatcher(pub ResetPublisher, pol retry.Policy) outbox.GlobalHandler {
	reset := instrument(outbox.KindResetRequested, func(ctx context.Context, data []byte) error {
		var p ResetRequestedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("unmarshal reset payload: %w", err)
		}
		return pub.SendResetEmail(ctx, p.LoginKey, p.Token)
	}, pol)

	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindResetRequested:
			return reset, nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}

// Enqueuer writes reset events into the outbox. Called inside the reset
// transaction, it makes the notification as durable as the token itself.
type Enqueuer struct {
	Repo outbox.Repository
}

func (e Enqueuer) EnqueueResetRequested(ctx context.Context, loginKey, token string) error {
	data, err := json.Marshal(ResetRequestedPayload{LoginKey: loginKey, Token: token})
	if err != nil {
		return fmt.Errorf("marshal reset payload: %w", err)
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return e.Repo.Enqueue(ctx, outbox.Message{
		IdempotencyKey: uuid.NewString(),
		Kind:           outbox.KindResetRequested,
		Data:           data,
		Traceparent:    carrier.Get("traceparent"),
		Tracestate:     carrier.Get("tracestate"),
		Baggage:        carrier.Get("baggage"),
	})
}
