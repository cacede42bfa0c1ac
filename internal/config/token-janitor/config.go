package token_janitor_config

import (
	"github.com/NordCoder/Gatekeep/internal/config/common"
	pg "github.com/NordCoder/Gatekeep/internal/repository/postgres"
	janitor "github.com/NordCoder/Gatekeep/internal/services/token-janitor"
)

type Config struct {
	App     common.App     `mapstructure:"app"`
	DB      pg.Config      `mapstructure:"db"`
	Janitor janitor.Config `mapstructure:"janitor"`
	OTEL    common.OTEL    `mapstructure:"otel"`
	Log     common.Log     `mapstructure:"log"`
}

func (c *Config) Validate() error {
	if c.DB.DSN == "" {
		return common.ErrConfig("db.dsn is required")
	}
	if c.Janitor.Tick <= 0 {
		return common.ErrConfig("janitor.tick must be positive")
	}
	if c.Janitor.Retention < 0 {
		return common.ErrConfig("janitor.retention must not be negative")
	}
	return nil
}
