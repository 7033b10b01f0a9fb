package application

import (
	"log/slog"
	"os"
	"strings"

	"thirdcoast.systems/haul/internal/config"
)

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL and
// installs it as the slog default. Output goes to stderr.
func NewLogger(conf config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(conf.LogLevel),
		AddSource: strings.EqualFold(conf.LogFormat, "text") && parseLevel(conf.LogLevel) == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(conf.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
