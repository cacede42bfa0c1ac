package token_janitor_config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Janitor.Tick)
	assert.Equal(t, 720*time.Hour, cfg.Janitor.Retention)
	assert.Equal(t, 500, cfg.Janitor.BatchLimit)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("JANITOR_RETENTION", "24h")
	t.Setenv("DB_DSN", "postgres://janitor@db/gatekeep")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Janitor.Retention)
	assert.Equal(t, "postgres://janitor@db/gatekeep", cfg.DB.DSN)
}

func TestLoad_InvalidTick(t *testing.T) {
	t.Setenv("JANITOR_TICK", "0s")
	_, err := Load("")
	assert.Error(t, err)
}
