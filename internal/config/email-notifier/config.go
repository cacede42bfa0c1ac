package email_notifier_config

import (
	"time"

	"github.com/NordCoder/Gatekeep/internal/config/common"
	kafkax "github.com/NordCoder/Gatekeep/internal/repository/kafka"
	notifier "github.com/NordCoder/Gatekeep/internal/services/email-notifier"
)

type KafkaIn struct {
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	GroupID       string        `mapstructure:"group_id"`
	FromBeginning bool          `mapstructure:"from_beginning"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

func (k KafkaIn) AsConsumerConfig() *kafkax.ConsumerConfig {
	return &kafkax.ConsumerConfig{
		Brokers:       k.Brokers,
		GroupID:       k.GroupID,
		Topic:         k.Topic,
		FromBeginning: k.FromBeginning,
		MaxAttempts:   k.MaxAttempts,
		RetryBackoff:  k.RetryBackoff,
	}
}

type Mail struct {
	ResetURL string        `mapstructure:"reset_url"`
	LinkTTL  time.Duration `mapstructure:"link_ttl"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type Config struct {
	App    common.App          `mapstructure:"app"`
	In     KafkaIn             `mapstructure:"kafka_in"`
	SMTP   notifier.SMTPConfig `mapstructure:"smtp"`
	Mail   Mail                `mapstructure:"mail"`
	Server Server              `mapstructure:"server"`
	OTEL   common.OTEL         `mapstructure:"otel"`
	Log    common.Log          `mapstructure:"log"`
}

func (c *Config) Validate() error {
	if len(c.In.Brokers) == 0 || c.In.Topic == "" || c.In.GroupID == "" {
		return common.ErrConfig("kafka_in.brokers, kafka_in.topic and kafka_in.group_id are required")
	}
	if c.SMTP.Addr == "" || c.SMTP.From == "" {
		return common.ErrConfig("smtp.addr and smtp.from are required")
	}
	if c.Mail.ResetURL == "" {
		return common.ErrConfig("mail.reset_url is required")
	}
	return nil
}
