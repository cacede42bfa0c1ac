package main

import (
	"context"

	config "github.com/NordCoder/Gatekeep/internal/config/auth-service"
	"github.com/NordCoder/Gatekeep/internal/obs"
)

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		return nil, err
	}
	return closer.Shutdown, nil
}
