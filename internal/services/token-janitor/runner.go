package janitor

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	mPurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "janitor_rows_purged_total", Help: "Expired token and delivered outbox rows deleted",
	}, []string{"kind"})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "janitor_errors_total", Help: "Failed janitor ticks",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "janitor_loop_duration_seconds", Help: "Janitor tick duration",
		Buckets: prometheus.DefBuckets,
	})
)

type Runner struct {
	Log  *zap.Logger
	UC   *Usecase
	Tick time.Duration
}

func New(log *zap.Logger, uc *Usecase) *Runner {
	tick := uc.Cfg.Tick
	if tick <= 0 {
		tick = 10 * time.Minute
	}
	return &Runner{Log: log.With(zap.String("component", "janitor")), UC: uc, Tick: tick}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	res, err := r.UC.Tick(ctx)
	mPurged.WithLabelValues("refresh").Add(float64(res.Refresh))
	mPurged.WithLabelValues("reset").Add(float64(res.Reset))
	mPurged.WithLabelValues("outbox").Add(float64(res.Outbox))
	if err != nil && ctx.Err() == nil {
		mErr.Inc()
		r.Log.Warn("tick error", zap.Error(err))
	}
	if res.Refresh > 0 || res.Reset > 0 || res.Outbox > 0 {
		r.Log.Info("purged rows",
			zap.Int64("refresh", res.Refresh),
			zap.Int64("reset", res.Reset),
			zap.Int64("outbox", res.Outbox),
		)
	}
	mLoopDur.Observe(time.Since(start).Seconds())
}

// Run ticks immediately and then every Tick until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Tick)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}
