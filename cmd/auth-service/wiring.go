package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	credauth "github.com/NordCoder/Gatekeep/internal/auth"
	config "github.com/NordCoder/Gatekeep/internal/config/auth-service"
	domainauth "github.com/NordCoder/Gatekeep/internal/domain/auth"
	"github.com/NordCoder/Gatekeep/internal/domain/notification"
	"github.com/NordCoder/Gatekeep/internal/obs/retry"
	"github.com/NordCoder/Gatekeep/internal/outbox"
	kafkax "github.com/NordCoder/Gatekeep/internal/repository/kafka"
	pg "github.com/NordCoder/Gatekeep/internal/repository/postgres"
	rds "github.com/NordCoder/Gatekeep/internal/repository/redis"
	"github.com/NordCoder/Gatekeep/internal/services/auth-service/auth"
	notifier "github.com/NordCoder/Gatekeep/internal/services/email-notifier"
)

// notifyWiring is what a notify mode contributes to the usecase. At most one
// of notifier and enqueuer is set; relay is set only with enqueuer.
type notifyWiring struct {
	notifier domainauth.Notifier
	enqueuer domainauth.ResetOutbox
	relay    *outbox.Runner
	closer   io.Closer
}

// buildUsecase wires the auth usecase. Closers release the notifier and cache
// connections and must run after the servers stop. The returned relay, when
// not nil, must be started by the caller.
func buildUsecase(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *pg.DB) (*auth.Usecase, *outbox.Runner, []io.Closer, error) {
	var closers []io.Closer

	codec, err := credauth.NewJWTCodec(credauth.CodecConfig{
		Secret:    []byte(cfg.Auth.JWTSecret),
		Algorithm: cfg.Auth.JWTAlgorithm,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("token codec: %w", err)
	}

	n := buildNotification(ctx, cfg, logger, db)
	if n.closer != nil {
		closers = append(closers, n.closer)
	}

	var cache domainauth.IdentityCache
	if cfg.Redis.Enable {
		client, err := rds.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, closers, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, client)
		cache = rds.NewIdentityCache(client, cfg.Redis.TTL)
		logger.Info("identity cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	uc, err := auth.NewUseCase(auth.Deps{
		Identities: pg.NewIdentityRepo(db),
		Refresh:    pg.NewRefreshTokenRepo(db),
		Resets:     pg.NewResetTokenRepo(db),
		Tx:         pg.NewTransactor(db, logger),
		Hasher:     credauth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Codec:      codec,
		Notifier:   n.notifier,
		Outbox:     n.enqueuer,
		Cache:      cache,
		Logger:     logger,
	}, auth.Config{
		AccessTTL:      cfg.Auth.AccessTTL,
		RefreshTTL:     cfg.Auth.RefreshTTL,
		ResetTTL:       cfg.Auth.ResetTTL,
		MinPasswordLen: cfg.Auth.MinPasswordLen,
		NotifyTimeout:  cfg.Notify.Timeout,
	})
	if err != nil {
		return nil, nil, closers, err
	}
	return uc, n.relay, closers, nil
}

func buildNotification(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *pg.DB) notifyWiring {
	switch cfg.Notify.Mode {
	case config.NotifyKafka:
		p := kafkax.BootstrapProducer(ctx, cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic, logger)
		logger.Info("reset notifications via kafka", zap.String("topic", cfg.Notify.Kafka.Topic))
		return notifyWiring{notifier: kafkax.NewResetEventsKafka(p), closer: p}
	case config.NotifyOutbox:
		p := kafkax.BootstrapProducer(ctx, cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic, logger)
		repo := pg.NewOutboxRepo(db)
		dispatch := outbox.NewDispatcher(kafkax.NewResetEventsKafka(p), retry.DefaultDeliveryPolicy("outbox_reset", logger))
		logger.Info("reset notifications via outbox", zap.String("topic", cfg.Notify.Kafka.Topic))
		return notifyWiring{
			enqueuer: outbox.Enqueuer{Repo: repo},
			relay:    outbox.NewRunner(logger, repo, dispatch, cfg.Notify.Outbox),
			closer:   p,
		}
	case config.NotifySMTP:
		mailer := notifier.NewMailer(cfg.Notify.SMTP).WithLogger(logger)
		h := &notifier.Handler{
			Out:      mailer,
			Clock:    notification.ClockFunc(nowUTC),
			ResetURL: cfg.Notify.ResetURL,
			LinkTTL:  cfg.Auth.ResetTTL,
			Retry:    retry.DefaultDeliveryPolicy("reset_mail", logger, notifier.ErrHeaderInjection),
			Log:      logger,
		}
		logger.Info("reset notifications via smtp", zap.String("smtp_addr", cfg.Notify.SMTP.Addr))
		return notifyWiring{notifier: notifier.Direct{H: h}}
	default:
		logger.Warn("reset notifications disabled")
		return notifyWiring{}
	}
}
