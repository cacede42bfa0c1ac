package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

type Kind int

const (
	KindResetRequested Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindResetRequested:
		return "reset_requested"
	default:
		return "unknown"
	}
}

// Message is one row of the outbox table. The trace fields carry the W3C
// context of the transaction that enqueued it.
type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	Attempts       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Traceparent    string
	Tracestate     string
	Baggage        string
}

type Repository interface {
	Enqueue(ctx context.Context, m Message) error
	// PickBatch claims up to batch messages that are new, or in progress for
	// longer than inProgressTTL.
	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)
	// MarkSuccess also drops the payload, which may hold a secret.
	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
