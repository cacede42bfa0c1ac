package notifier

import (
	"context"

	"github.com/NordCoder/Gatekeep/internal/domain/notification"
)

// Direct delivers reset e-mails in process, for deployments without Kafka.
type Direct struct {
	H *Handler
}

func (d Direct) SendResetEmail(ctx context.Context, loginKey, token string) error {
	return d.H.HandleResetRequested(ctx, notification.ResetRequested{
		LoginKey:    loginKey,
		Token:       token,
		RequestedAt: d.H.now(),
	})
}
