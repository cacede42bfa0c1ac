package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Gatekeep/internal/domain/notification"
	"github.com/NordCoder/Gatekeep/internal/obs"
	"github.com/NordCoder/Gatekeep/internal/obs/retry"
)

const resetSubject = "Password reset"

type Handler struct {
	Out      notification.EmailSender
	Clock    notification.Clock
	ResetURL string
	// LinkTTL is the reset token lifetime; events older than that are dropped.
	LinkTTL time.Duration
	Retry   retry.Policy
	Log     *zap.Logger
}

// HandleResetRequested mails the reset link. Expired events are skipped
// without error so the consumer commits them.
func (h *Handler) HandleResetRequested(ctx context.Context, ev notification.ResetRequested) error {
	log := obs.WithTrace(ctx, h.logger())
	mConsumed.Inc()

	if h.LinkTTL > 0 && !h.now().Before(ev.RequestedAt.Add(h.LinkTTL)) {
		mSkipped.Inc()
		log.Info("reset event expired; skipping", zap.Time("requested_at", ev.RequestedAt))
		return nil
	}

	body, err := ComposeResetEmail(h.ResetURL, ev.Token, h.LinkTTL)
	if err != nil {
		mErrors.Inc()
		return err
	}

	err = retry.Do(ctx, func() error {
		return h.Out.Send(ctx, ev.LoginKey, resetSubject, body)
	}, h.Retry)
	if err != nil {
		mErrors.Inc()
		return fmt.Errorf("send email: %w", err)
	}
	mSent.Inc()
	log.Info("reset email sent")
	return nil
}

// ComposeResetEmail renders the plain-text body with the link <resetURL>?token=<token>.
func ComposeResetEmail(resetURL, token string, ttl time.Duration) (string, error) {
	link, err := resetLink(resetURL, token)
	if err != nil {
		return "", err
	}
	validity := ""
	if ttl > 0 {
		validity = fmt.Sprintf("The link is valid for %s.\n", humanDuration(ttl))
	}
	return fmt.Sprintf(
		"Hello!\n\nA password reset was requested for your account.\n"+
			"Follow the link below to choose a new password:\n\n%s\n\n%s"+
			"If you did not request this, ignore this e-mail; your password stays unchanged.\n\nGatekeep",
		link, validity,
	), nil
}

func resetLink(resetURL, token string) (string, error) {
	u, err := url.Parse(resetURL)
	if err != nil {
		return "", fmt.Errorf("parse reset url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("reset url must be absolute")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0 && d >= time.Hour:
		n := int(d / time.Hour)
		if n == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", n)
	case d%time.Minute == 0 && d >= time.Minute:
		n := int(d / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	default:
		return d.String()
	}
}

func (h *Handler) now() time.Time {
	if h.Clock == nil {
		return time.Now().UTC()
	}
	return h.Clock.Now()
}

func (h *Handler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
