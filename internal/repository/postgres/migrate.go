package postgres

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/NordCoder/Gatekeep/migrations"
)

// Migrate brings the schema at dsn up to the latest embedded version.
func Migrate(ctx context.Context, dsn string) error {
	return RunGoose(ctx, dsn, "up")
}

// RunGoose runs a goose command (up, down, status, version, redo...) against
// the embedded migrations.
func RunGoose(ctx context.Context, dsn, command string, args ...string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
