package email_notifier_config

import (
	"github.com/NordCoder/Gatekeep/internal/config/common"
)

func Load(path string) (*Config, error) {
	v, err := common.NewViper(path)
	if err != nil {
		return nil, err
	}

	common.SetAppDefaults(v, "email-notifier")

	v.SetDefault("kafka_in.brokers", []string{"kafka:9092"})
	v.SetDefault("kafka_in.topic", "gatekeep.password.reset")
	v.SetDefault("kafka_in.group_id", "email-notifier")
	v.SetDefault("kafka_in.from_beginning", false)
	v.SetDefault("kafka_in.max_attempts", 2)
	v.SetDefault("kafka_in.retry_backoff", "5s")

	v.SetDefault("smtp.addr", "localhost:1025")
	v.SetDefault("smtp.from", "noreply@gatekeep.dev")
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.use_tls", false)
	v.SetDefault("smtp.insecure_skip_verify", false)
	v.SetDefault("smtp.timeout", "5s")
	v.SetDefault("smtp.subj_prefix", "[Gatekeep]")

	v.SetDefault("mail.reset_url", "http://localhost:3000/reset-password")
	v.SetDefault("mail.link_ttl", "1h")

	v.SetDefault("server.metrics_addr", ":8084")

	var cfg Config
	if err := common.Unmarshal(v, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
