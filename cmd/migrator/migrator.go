// Command migrator applies the embedded schema migrations. It takes an
// optional goose command and its arguments; the default is "up".
//
//	DB_DSN=postgres://... migrator [up|down|status|version|redo] [args...]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Gatekeep/internal/obs"
	pg "github.com/NordCoder/Gatekeep/internal/repository/postgres"
)

func main() {
	logger, err := obs.NewLogger(obs.LogConfig{Level: os.Getenv("LOG_LEVEL"), App: "migrator"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		logger.Fatal("DB_DSN is empty")
	}

	command, args := "up", []string(nil)
	if len(os.Args) > 1 {
		command, args = os.Args[1], os.Args[2:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	if err := pg.RunGoose(ctx, dsn, command, args...); err != nil {
		logger.Fatal("migration failed", zap.String("command", command), zap.Error(err))
	}
	logger.Info("migration done", zap.String("command", command), zap.Duration("took", time.Since(start)))
}
