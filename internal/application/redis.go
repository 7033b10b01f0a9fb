package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"thirdcoast.systems/haul/internal/config"
)

var ErrEmptyRedisAddress = errors.New("redis address is required")

const redisPingTimeout = 5 * time.Second

// OpenRedisWithRetry connects to the broker's Redis and verifies it with PING,
// using the same backoff as the database pool.
func OpenRedisWithRetry(ctx context.Context, conf config.Config) (*redis.Client, error) {
	if conf.Redis.Address == "" {
		return nil, ErrEmptyRedisAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	attempts := max(conf.DatabaseRetries, 1)
	var lastErr error
	for i := 0; i < attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			slog.Info("redis ready", "addr", conf.Redis.Address, "db", conf.Redis.DB)
			return client, nil
		}

		wait := backoff(i)
		slog.Warn("redis ping failed", "error", lastErr, "retry_in", wait)
		if err := sleepCtx(ctx, wait); err != nil {
			client.Close()
			return nil, err
		}
	}

	client.Close()
	return nil, fmt.Errorf("redis ping failed after %d attempts: %w", attempts, lastErr)
}
