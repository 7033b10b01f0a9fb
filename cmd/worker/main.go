package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thirdcoast.systems/haul/internal/application"
	"thirdcoast.systems/haul/internal/config"
	"thirdcoast.systems/haul/internal/db"
	"thirdcoast.systems/haul/internal/extraction"
	"thirdcoast.systems/haul/internal/pipeline"
	"thirdcoast.systems/haul/internal/transcript"
	"thirdcoast.systems/haul/pkg/utils/language"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting extraction worker")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := conf.RequireWorker(); err != nil {
		slog.Error("worker config incomplete", "error", err)
		os.Exit(1)
	}
	application.NewLogger(*conf)

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		slog.Error("failed to create database connection", "error", err)
		os.Exit(1)
	}
	defer dbc.Close()

	rdb, err := application.OpenRedisWithRetry(ctx, *conf)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Items left PROCESSING by a crashed worker are not retried automatically.
	cutoff := time.Now().Add(-time.Duration(conf.Worker.StuckAfterMinutes) * time.Minute)
	if n, err := dbc.Queries(ctx).CountStuckQueueItems(ctx, cutoff); err != nil {
		if db.IsUndefinedColumnErr(err) {
			slog.Error("database schema is missing, run pg-migrator first", "error", err)
			os.Exit(1)
		}
		slog.Warn("failed to count stuck queue items", "error", err)
	} else if n > 0 {
		slog.Warn("queue items stuck in PROCESSING need manual attention", "count", n, "older_than", cutoff)
	}

	lang, err := language.Parse(conf.Transcript.Language)
	if err != nil {
		slog.Warn("ignoring invalid TRANSCRIPT_LANGUAGE", "value", conf.Transcript.Language, "error", err)
	}
	transcripts := transcript.NewClient(conf.Transcript.BaseURL, conf.Transcript.APIKey,
		transcript.WithDefaultLanguage(lang),
	)
	extractor := extraction.NewClient(extraction.Config{
		APIKey:    conf.Extraction.APIKey,
		BaseURL:   conf.Extraction.BaseURL,
		Model:     conf.Extraction.Model,
		MaxTokens: conf.Extraction.MaxTokens,
	})

	processor := pipeline.NewProcessor(dbc.Store(), transcripts, extractor)
	workers := pipeline.NewPool(
		application.NewBroker(rdb, *conf),
		processor,
		conf.Worker.Concurrency,
		time.Duration(conf.Worker.PollSeconds)*time.Second,
	)

	slog.Info("Extraction workers started", "workers", conf.Worker.Concurrency)
	if err := workers.Run(ctx); err != nil {
		slog.Error("worker pool stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("Extraction worker stopping")
}
