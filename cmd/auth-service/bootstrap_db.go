package main

import (
	"context"

	"go.uber.org/zap"

	config "github.com/NordCoder/Gatekeep/internal/config/auth-service"
	pg "github.com/NordCoder/Gatekeep/internal/repository/postgres"
)

func initDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pg.DB, error) {
	if cfg.DB.AutoMigrate {
		if err := pg.Migrate(ctx, cfg.DB.DSN); err != nil {
			return nil, err
		}
		logger.Info("migrations applied")
	}
	return pg.NewDB(ctx, cfg.DB)
}
