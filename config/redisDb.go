package config

import (
	"context"
	"fmt"
	"os"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis holds the client used for the reference cache and the lock client
// built on it.
type Redis struct {
	Client *redis.Client
	Lock   *redislock.Client
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

// ConnectRedis pings REDIS_ADDRESS with backoff until it answers or ctx ends.
func ConnectRedis(ctx context.Context) (*Redis, error) {
	addr := getEnv("REDIS_ADDRESS", "localhost:6379")
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       intFromEnv("REDIS_DB", 0),
		PoolSize: 20,
	})

	var attempt int
	for {
		attempt++
		err := client.Ping(ctx).Err()
		if err == nil {
			logg.WithFields(logrus.Fields{"field": "redis", "attempt": attempt, "addr": addr}).Info("connected to redis")
			return &Redis{Client: client, Lock: redislock.New(client)}, nil
		}
		sleep := backoff(attempt)
		logg.WithFields(logrus.Fields{"field": "redis", "attempt": attempt, "addr": addr, "retry_in": sleep.String()}).Warn(err.Error())
		if waitErr := sleepCtx(ctx, sleep); waitErr != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", addr, err)
		}
	}
}
