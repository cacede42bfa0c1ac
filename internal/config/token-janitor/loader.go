package token_janitor_config

import (
	"github.com/NordCoder/Gatekeep/internal/config/common"
)

func Load(path string) (*Config, error) {
	v, err := common.NewViper(path)
	if err != nil {
		return nil, err
	}

	common.SetAppDefaults(v, "token-janitor")
	common.SetDBDefaults(v, 4, 1)

	v.SetDefault("janitor.tick", "10m")
	v.SetDefault("janitor.batch_limit", 500)
	v.SetDefault("janitor.max_batches", 20)
	v.SetDefault("janitor.retention", "720h")
	v.SetDefault("janitor.metrics_addr", ":8086")

	var cfg Config
	if err := common.Unmarshal(v, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
