package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "email_notifier_messages_consumed_total",
		Help: "Password reset events consumed",
	})
	mSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "email_notifier_emails_sent_total",
		Help: "Reset e-mails sent",
	})
	mSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "email_notifier_events_skipped_total",
		Help: "Reset events dropped because the link had already expired",
	})
	mErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "email_notifier_errors_total",
		Help: "Malformed events and failed deliveries",
	})
)
