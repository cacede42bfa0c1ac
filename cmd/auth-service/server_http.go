package main

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	config "github.com/NordCoder/Gatekeep/internal/config/auth-service"
	pg "github.com/NordCoder/Gatekeep/internal/repository/postgres"
	"github.com/NordCoder/Gatekeep/internal/services/auth-service/auth"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, db *pg.DB, uc *auth.Usecase) *http.Server {
	ctrl := auth.NewController(uc, auth.Opts{Logger: logger})
	router := auth.NewRouter(ctrl, db.Ping, logger)

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "auth-service"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func serveHTTP(srv *http.Server, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}
