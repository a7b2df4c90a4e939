package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// OpenRedis initializes a Redis client and verifies the connection
func OpenRedis(ctx context.Context, addr, password string, db int, log *logrus.Entry) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("✓ Redis connected successfully")
	return client, nil
}
