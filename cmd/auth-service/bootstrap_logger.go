package main

import (
	"go.uber.org/zap"

	config "github.com/NordCoder/Gatekeep/internal/config/auth-service"
	"github.com/NordCoder/Gatekeep/internal/obs"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
}
