package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Gatekeep/internal/config/email-notifier"
	"github.com/NordCoder/Gatekeep/internal/domain/notification"
	"github.com/NordCoder/Gatekeep/internal/obs"
	"github.com/NordCoder/Gatekeep/internal/obs/retry"
	"github.com/NordCoder/Gatekeep/internal/repository/kafka"
	notifier "github.com/NordCoder/Gatekeep/internal/services/email-notifier"
)

func wiring(cfg *config.Config, cons *kafka.Consumer, l *zap.Logger) *notifier.Controller {
	mailer := notifier.NewMailer(cfg.SMTP).WithLogger(l)

	uc := &notifier.Handler{
		Out:      mailer,
		Clock:    notification.ClockFunc(func() time.Time { return time.Now().UTC() }),
		ResetURL: cfg.Mail.ResetURL,
		LinkTTL:  cfg.Mail.LinkTTL,
		Retry:    retry.DefaultDeliveryPolicy("reset_mail", l, notifier.ErrHeaderInjection),
		Log:      l,
	}

	return &notifier.Controller{Log: l, Sub: cons, UC: uc}
}

func main() {
	configPath := flag.String("config", "config/email-notifier.yaml", "path to yaml config")
	flag.Parse()

	// init
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	l.Info("starting email-notifier",
		zap.Strings("brokers", cfg.In.Brokers),
		zap.String("topic", cfg.In.Topic),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
		zap.String("smtp_addr", cfg.SMTP.Addr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, nil, l)

	// kafka
	cons := kafka.BootstrapConsumer(rootCtx, cfg.In.AsConsumerConfig(), l)
	defer func() { _ = cons.Close() }()

	// start
	ctrl := wiring(cfg, cons, l)
	errCh := make(chan error, 1)
	go func() {
		l.Info("controller starting")
		errCh <- ctrl.Run(rootCtx)
	}()

	// main loop
	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case runErr := <-errCh:
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			l.Error("controller error", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
