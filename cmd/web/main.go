package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"thirdcoast.systems/haul/cmd/web/internal/web"
	"thirdcoast.systems/haul/internal/application"
	"thirdcoast.systems/haul/internal/config"
	"thirdcoast.systems/haul/internal/db"
)

const shutdownGrace = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("web service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	conf, err := config.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	application.NewLogger(*conf)

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	defer dbc.Close()

	rdb, err := application.OpenRedisWithRetry(ctx, *conf)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	server, err := web.NewWebserver(dbc.Store(), application.NewBroker(rdb, *conf))
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	addr := ":" + strconv.Itoa(conf.WebServerPort)
	go func() {
		slog.Info("capture api listening", "addr", addr)
		errc <- server.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("capture api stopped")
	return nil
}
