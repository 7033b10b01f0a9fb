package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	// WebServer Configuration
	WebServerPort int `mapstructure:"WEBSERVER_PORT"`

	// Database Configuration
	DatabaseDSN     string `mapstructure:"DATABASE_DSN" validate:"required"`
	DatabaseRetries int    `mapstructure:"DATABASE_RETRIES"`

	Redis  RedisConfig  `mapstructure:",squash"`
	Broker BrokerConfig `mapstructure:",squash"`
	Worker WorkerConfig `mapstructure:",squash"`

	Transcript TranscriptConfig `mapstructure:",squash"`
	Extraction ExtractionConfig `mapstructure:",squash"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"oneof=text json"`
}

// RedisConfig is checked when the connection is opened; the migrator runs
// without it.
type RedisConfig struct {
	Address  string `mapstructure:"REDIS_ADDRESS"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB" validate:"gte=0"`
}

type BrokerConfig struct {
	Prefix        string `mapstructure:"BROKER_PREFIX" validate:"required"`
	Queue         string `mapstructure:"BROKER_QUEUE" validate:"required"`
	KeepCompleted int64  `mapstructure:"BROKER_KEEP_COMPLETED" validate:"gte=0"`
	KeepFailed    int64  `mapstructure:"BROKER_KEEP_FAILED" validate:"gte=0"`
}

type WorkerConfig struct {
	Concurrency       int `mapstructure:"WORKER_CONCURRENCY" validate:"min=1,max=16"`
	PollSeconds       int `mapstructure:"WORKER_POLL_SECONDS" validate:"min=1"`
	StuckAfterMinutes int `mapstructure:"STUCK_AFTER_MINUTES" validate:"min=1"`
}

// TranscriptConfig is only required by the worker; see RequireWorker.
type TranscriptConfig struct {
	BaseURL  string `mapstructure:"TRANSCRIPT_BASE_URL"`
	APIKey   string `mapstructure:"TRANSCRIPT_API_KEY"`
	Language string `mapstructure:"TRANSCRIPT_LANGUAGE"`
}

type ExtractionConfig struct {
	APIKey    string `mapstructure:"EXTRACTION_API_KEY"`
	BaseURL   string `mapstructure:"EXTRACTION_BASE_URL"`
	Model     string `mapstructure:"EXTRACTION_MODEL"`
	MaxTokens int64  `mapstructure:"EXTRACTION_MAX_TOKENS" validate:"min=256"`
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	val := reflect.ValueOf(c)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)
		tag := field.Tag.Get("mapstructure")

		squash := strings.HasPrefix(tag, ",")

		if tag != "" && !squash {
			viper.BindEnv(tag)
		}

		// Handle nested structs
		if field.Type.Kind() == reflect.Struct && (tag == "" || squash) {
			nestedTyp := fieldVal.Type()
			for j := 0; j < fieldVal.NumField(); j++ {
				nestedField := nestedTyp.Field(j)
				nestedTag := nestedField.Tag.Get("mapstructure")
				if nestedTag != "" {
					viper.BindEnv(nestedTag)
				}
			}
		}
	}
}

func LoadConfig(ctx context.Context) (*Config, error) {
	bindEnv(Config{})
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("WEBSERVER_PORT", 8080)
	viper.SetDefault("DATABASE_RETRIES", 10)
	viper.SetDefault("BROKER_PREFIX", "haul")
	viper.SetDefault("BROKER_QUEUE", "extraction")
	viper.SetDefault("BROKER_KEEP_COMPLETED", 1000)
	viper.SetDefault("BROKER_KEEP_FAILED", 5000)
	viper.SetDefault("WORKER_CONCURRENCY", 3)
	viper.SetDefault("WORKER_POLL_SECONDS", 5)
	viper.SetDefault("STUCK_AFTER_MINUTES", 30)
	viper.SetDefault("TRANSCRIPT_LANGUAGE", "en")
	viper.SetDefault("EXTRACTION_MODEL", "claude-sonnet-4-5")
	viper.SetDefault("EXTRACTION_MAX_TOKENS", 2048)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	slog.Info("Loaded configuration",
		"webserver_port", cfg.WebServerPort,
		"redis", cfg.Redis.Address,
		"queue", cfg.Broker.Prefix+":"+cfg.Broker.Queue,
		"workers", cfg.Worker.Concurrency,
	)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// RequireWorker checks the settings only the extraction worker needs.
func (c *Config) RequireWorker() error {
	if c.Transcript.BaseURL == "" {
		return fmt.Errorf("validate config: TRANSCRIPT_BASE_URL is required")
	}
	if c.Extraction.APIKey == "" {
		return fmt.Errorf("validate config: EXTRACTION_API_KEY is required")
	}
	return nil
}
