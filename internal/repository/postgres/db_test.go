package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nilStats struct{}

func (nilStats) Stat() *pgxpool.Stat { return nil }

func TestRegisterPoolStats_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, registerPoolStats(reg, nilStats{}))
	require.NoError(t, registerPoolStats(reg, nilStats{}))
}

func TestConfig_PoolConfig(t *testing.T) {
	pc, err := Config{
		DSN:             "postgres://u:p@localhost:5432/gatekeep?sslmode=disable",
		MaxConns:        7,
		MaxConnLifetime: time.Minute,
	}.poolConfig()
	require.NoError(t, err)
	assert.EqualValues(t, 7, pc.MaxConns)
	assert.Equal(t, time.Minute, pc.MaxConnLifetime)

	_, err = Config{DSN: "postgres://u:p@localhost:notaport/db"}.poolConfig()
	assert.Error(t, err)
}
