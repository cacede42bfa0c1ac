package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	connectPingTimeout = 5 * time.Second
	healthPingTimeout  = 500 * time.Millisecond
)

// Config tunes the pgx pool. Zero values keep pgx defaults.
type Config struct {
	DSN               string        `mapstructure:"dsn"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

func (c Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	setIf(&pc.MaxConns, c.MaxConns)
	setIf(&pc.MinConns, c.MinConns)
	setIf(&pc.MaxConnLifetime, c.MaxConnLifetime)
	setIf(&pc.MaxConnIdleTime, c.MaxConnIdleTime)
	setIf(&pc.HealthCheckPeriod, c.HealthCheckPeriod)
	return pc, nil
}

func setIf[T int32 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// Pool is the subset of *pgxpool.Pool the repositories use.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type DB struct {
	Pool         Pool
	QueryTimeout time.Duration
}

// NewDB opens a pool, checks it with a ping and exposes its stats as
// prometheus gauges.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, connectPingTimeout)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := registerPoolStats(prometheus.DefaultRegisterer, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return FromPool(pool, cfg.QueryTimeout), nil
}

// FromPool wraps an existing pool, e.g. a pgxmock one.
func FromPool(p Pool, queryTimeout time.Duration) *DB {
	return &DB{Pool: p, QueryTimeout: queryTimeout}
}

func (db *DB) Close() { db.Pool.Close() }

func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return db.Pool.Ping(ctx)
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.QueryTimeout)
}

type statser interface {
	Stat() *pgxpool.Stat
}

// registerPoolStats keeps the first collector when the gauges already exist.
func registerPoolStats(reg prometheus.Registerer, p statser) error {
	gauges := map[string]func(*pgxpool.Stat) float64{
		"db_pool_acquired_conns": func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) },
		"db_pool_idle_conns":     func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) },
		"db_pool_total_conns":    func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) },
		"db_pool_max_conns":      func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) },
	}
	for name, read := range gauges {
		g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name,
			Help: "pgx pool statistic " + name + ".",
		}, func() float64 { return read(p.Stat()) })
		if err := reg.Register(g); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}
