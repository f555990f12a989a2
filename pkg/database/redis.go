package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ridewire/voice-engine/pkg/config"
	"github.com/ridewire/voice-engine/pkg/retry"
)

// NewRedisClient creates a Redis client for the memory store and waits for
// the server to answer PING.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.ResolveHostForDocker(cfg.Host) + fmt.Sprintf(":%d", cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := retry.DoIfRetryable(ctx, retry.StartupConfig(), func() error {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis not ready", zap.String("addr", cfg.Addr()), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
