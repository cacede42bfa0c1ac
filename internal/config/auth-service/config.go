package auth_service_config

import (
	"time"

	"github.com/NordCoder/Gatekeep/internal/config/common"
	"github.com/NordCoder/Gatekeep/internal/outbox"
	pg "github.com/NordCoder/Gatekeep/internal/repository/postgres"
	rds "github.com/NordCoder/Gatekeep/internal/repository/redis"
	notifier "github.com/NordCoder/Gatekeep/internal/services/email-notifier"
)

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Auth struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTAlgorithm   string        `mapstructure:"jwt_algorithm"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	ResetTTL       time.Duration `mapstructure:"reset_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	MinPasswordLen int           `mapstructure:"min_password_len"`
}

type KafkaOut struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Notification modes. NotifyOutbox publishes to Kafka through the
// transactional outbox instead of straight after the commit.
const (
	NotifyKafka  = "kafka"
	NotifyOutbox = "outbox"
	NotifySMTP   = "smtp"
	NotifyNone   = "none"
)

type Notify struct {
	Mode     string              `mapstructure:"mode"`
	Timeout  time.Duration       `mapstructure:"timeout"`
	ResetURL string              `mapstructure:"reset_url"`
	Kafka    KafkaOut            `mapstructure:"kafka"`
	Outbox   outbox.Config       `mapstructure:"outbox"`
	SMTP     notifier.SMTPConfig `mapstructure:"smtp"`
}

type Config struct {
	App    common.App  `mapstructure:"app"`
	Server Server      `mapstructure:"server"`
	DB     pg.Config   `mapstructure:"db"`
	OTEL   common.OTEL `mapstructure:"otel"`
	Log    common.Log  `mapstructure:"log"`
	Auth   Auth        `mapstructure:"auth"`
	Notify Notify      `mapstructure:"notify"`
	Redis  rds.Config  `mapstructure:"redis"`
}

const minProdSecretLen = 32

func (c *Config) Validate() error {
	if c.DB.DSN == "" {
		return common.ErrConfig("db.dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		return common.ErrConfig("auth.jwt_secret is required")
	}
	if !c.App.IsDev() && len(c.Auth.JWTSecret) < minProdSecretLen {
		return common.ErrConfig("auth.jwt_secret must be at least 32 bytes outside dev")
	}
	switch c.Auth.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return common.ErrConfig("auth.jwt_algorithm must be one of HS256, HS384, HS512")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 || c.Auth.ResetTTL <= 0 {
		return common.ErrConfig("auth token ttls must be positive")
	}
	switch c.Notify.Mode {
	case NotifyKafka, NotifyOutbox:
		if len(c.Notify.Kafka.Brokers) == 0 || c.Notify.Kafka.Topic == "" {
			return common.ErrConfig("notify.kafka.brokers and notify.kafka.topic are required in kafka and outbox modes")
		}
	case NotifySMTP:
		if c.Notify.ResetURL == "" || c.Notify.SMTP.Addr == "" {
			return common.ErrConfig("notify.reset_url and notify.smtp.addr are required in smtp mode")
		}
	case NotifyNone:
	default:
		return common.ErrConfig("notify.mode must be kafka, outbox, smtp or none")
	}
	if c.Redis.Enable && c.Redis.Addr == "" {
		return common.ErrConfig("redis.addr is required when redis is enabled")
	}
	return nil
}
