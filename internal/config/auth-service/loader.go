package auth_service_config

import (
	"github.com/NordCoder/Gatekeep/internal/config/common"
)

func Load(path string) (*Config, error) {
	v, err := common.NewViper(path)
	if err != nil {
		return nil, err
	}

	common.SetAppDefaults(v, "auth-service")
	common.SetDBDefaults(v, 20, 5)

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "15s")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_algorithm", "HS256")
	v.SetDefault("auth.access_ttl", "30m")
	v.SetDefault("auth.refresh_ttl", "168h")
	v.SetDefault("auth.reset_ttl", "1h")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.min_password_len", 8)

	v.SetDefault("notify.mode", NotifyKafka)
	v.SetDefault("notify.timeout", "5s")
	v.SetDefault("notify.reset_url", "http://localhost:3000/reset-password")
	v.SetDefault("notify.kafka.brokers", []string{"localhost:9094"})
	v.SetDefault("notify.kafka.topic", "gatekeep.password.reset")
	v.SetDefault("notify.outbox.workers", 1)
	v.SetDefault("notify.outbox.batch_size", 100)
	v.SetDefault("notify.outbox.interval", "2s")
	v.SetDefault("notify.outbox.in_progress_ttl", "30s")
	v.SetDefault("notify.smtp.addr", "localhost:1025")
	v.SetDefault("notify.smtp.from", "noreply@gatekeep.dev")
	v.SetDefault("notify.smtp.user", "")
	v.SetDefault("notify.smtp.password", "")
	v.SetDefault("notify.smtp.use_tls", false)
	v.SetDefault("notify.smtp.insecure_skip_verify", false)
	v.SetDefault("notify.smtp.timeout", "5s")
	v.SetDefault("notify.smtp.subj_prefix", "[Gatekeep]")

	v.SetDefault("redis.enable", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "1m")

	var cfg Config
	if err := common.Unmarshal(v, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
