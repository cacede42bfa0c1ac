package email_notifier_config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gatekeep.password.reset", cfg.In.Topic)
	assert.Equal(t, time.Hour, cfg.Mail.LinkTTL)
	assert.Equal(t, 5*time.Second, cfg.SMTP.Timeout)

	cc := cfg.In.AsConsumerConfig()
	assert.Equal(t, cfg.In.Brokers, cc.Brokers)
	assert.Equal(t, "email-notifier", cc.GroupID)
	assert.Equal(t, 2, cc.MaxAttempts)
	assert.Equal(t, 5*time.Second, cc.RetryBackoff)
}

func TestValidate_RequiresResetURL(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Mail.ResetURL = ""
	assert.Error(t, cfg.Validate())
}
