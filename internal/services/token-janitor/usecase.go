package janitor

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type TokenPurger interface {
	PurgeRefreshTokens(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	PurgeResetTokens(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	// PurgeOutbox removes delivered reset events.
	PurgeOutbox(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// Config drives the sweep. MaxBatches caps the DELETE batches per table in a single tick.
type Config struct {
	Tick        time.Duration `mapstructure:"tick"`
	BatchLimit  int           `mapstructure:"batch_limit"`
	MaxBatches  int           `mapstructure:"max_batches"`
	Retention   time.Duration `mapstructure:"retention"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

type Usecase struct {
	Repo TokenPurger
	Now  func() time.Time
	Cfg  Config
}

func NewUC(repo TokenPurger, cfg Config) *Usecase {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 500
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = 20
	}
	if cfg.Retention < 0 {
		cfg.Retention = 0
	}
	return &Usecase{Repo: repo, Now: func() time.Time { return time.Now().UTC() }, Cfg: cfg}
}

type Result struct {
	Refresh int64
	Reset   int64
	Outbox  int64
}

// Tick purges token rows whose expiry lies more than Retention in the past,
// then delivered outbox rows older than the same cutoff.
func (u *Usecase) Tick(ctx context.Context) (Result, error) {
	cutoff := u.Now().Add(-u.Cfg.Retention)

	tr := otel.Tracer("janitor.uc")
	ctx, span := tr.Start(ctx, "janitor.tick", trace.WithAttributes(
		attribute.Int("batch.limit", u.Cfg.BatchLimit),
		attribute.String("cutoff", cutoff.Format(time.RFC3339)),
	))
	defer span.End()

	var res Result
	var err error
	res.Refresh, err = u.drain(ctx, "refresh", cutoff, u.Repo.PurgeRefreshTokens)
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	res.Reset, err = u.drain(ctx, "reset", cutoff, u.Repo.PurgeResetTokens)
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	res.Outbox, err = u.drain(ctx, "outbox", cutoff, u.Repo.PurgeOutbox)
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	span.SetAttributes(
		attribute.Int64("purged.refresh", res.Refresh),
		attribute.Int64("purged.reset", res.Reset),
		attribute.Int64("purged.outbox", res.Outbox),
	)
	return res, nil
}

type purgeFn func(ctx context.Context, cutoff time.Time, limit int) (int64, error)

func (u *Usecase) drain(ctx context.Context, kind string, cutoff time.Time, purge purgeFn) (int64, error) {
	var total int64
	for i := 0; i < u.Cfg.MaxBatches; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := purge(ctx, cutoff, u.Cfg.BatchLimit)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", kind, err)
		}
		total += n
		if n < int64(u.Cfg.BatchLimit) {
			break
		}
	}
	return total, nil
}
