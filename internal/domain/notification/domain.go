package notification

import (
	"context"
	"time"
)

// ResetRequested is published after a reset token has been committed.
type ResetRequested struct {
	LoginKey    string
	Token       string
	RequestedAt time.Time
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
