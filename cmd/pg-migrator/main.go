package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thirdcoast.systems/haul/internal/application"
	"thirdcoast.systems/haul/internal/config"
	"thirdcoast.systems/haul/internal/db"
)

const migrateTimeout = 2 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	conf, err := config.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	application.NewLogger(*conf)

	target, err := db.ParseMigrateTarget(os.Getenv("GOOSE_UP_TO"), os.Getenv("GOOSE_DOWN_TO"))
	if err != nil {
		return err
	}

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	defer dbc.Close()

	version, err := dbc.Migrate(ctx, target)
	if err != nil {
		return err
	}
	slog.Info("schema migrated", "version", version)
	return nil
}
