package redis

import (
	"context"
	"time"

	"affiliate-platform/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(New),
)

func New(lc fx.Lifecycle, c *config.Config) *redis.Client {
	zapLog := zap.L().With(
		zap.String("addr", c.Redis.Addr),
		zap.Int("db", c.Redis.DB),
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		PoolSize:    c.Redis.PoolSize,
		PoolTimeout: c.Redis.PoolTimeout,
	})

	for i := 0; i < 5; i++ {
		_, err := rdb.Ping(context.Background()).Result()
		if err == nil {
			break
		}

		zapLog.Warn("[Redis] Redis not ready, retrying in 3 seconds...", zap.Int("retry", i+1), zap.Error(err))
		time.Sleep(3 * time.Second)
	}

	zapLog.Info("[Redis] Connected to Redis")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})

	return rdb
}
