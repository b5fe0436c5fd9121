package config

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

// GetRedisDB returns nil until ConnectRedisWithRetry succeeds.
func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

// ConnectRedisWithRetry connects and sets the global Redis client + lock client.
// maxAttempts <= 0 retries until ctx is done.
func ConnectRedisWithRetry(ctx context.Context, addr string, maxAttempts int) (*redis.Client, error) {
	if addr == "" {
		addr = Getenv("REDIS_ADDRESS", "localhost:6379")
	}
	logger := GetLogger()

	var attempt int
	for {
		attempt++
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: Getenv("REDIS_PASSWORD", ""),
			DB:       IntFromEnv("REDIS_DB", 0),
			PoolSize: IntFromEnv("REDIS_POOL_SIZE", 20),
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			rdb = client
			locker = redislock.New(client)
			logger.WithFields(logrus.Fields{"field": "redis", "attempt": attempt, "addr": addr}).Info("connected to redis")
			return client, nil
		}
		_ = client.Close()
		if maxAttempts > 0 && attempt >= maxAttempts {
			return nil, fmt.Errorf("connect redis (attempts=%d addr=%s): %w", attempt, addr, err)
		}

		sleep := backoff(attempt)
		logger.WithFields(logrus.Fields{"field": "redis", "attempt": attempt, "addr": addr, "retry_in": sleep.String()}).Warn(err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}
