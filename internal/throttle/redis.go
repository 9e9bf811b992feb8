package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "typing"

// Redis shares the typing window between server processes with SET NX PX.
type Redis struct {
	cli    *redis.Client
	window time.Duration
	logger *slog.Logger
}

// Connect connects to the Redis server and pings the server to ensure the
// connection is working.
func Connect(ctx context.Context, addr string, window time.Duration, logger *slog.Logger) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(cli, window, logger), nil
}

func NewRedis(cli *redis.Client, window time.Duration, logger *slog.Logger) *Redis {
	return &Redis{
		cli:    cli,
		window: window,
		logger: logger.With(slog.String("component", "typing_throttle_redis")),
	}
}

// Allow fails open: if Redis is unreachable the indicator is sent.
func (r *Redis) Allow(ctx context.Context, key string) bool {
	if r.window <= 0 {
		return true
	}
	ok, err := r.cli.SetNX(ctx, keyPrefix+":"+key, 1, r.window).Result()
	if err != nil {
		r.logger.Warn("Throttle check failed", slog.String("key", key), slog.Any("error", err))
		return true
	}
	return ok
}

func (r *Redis) Reset(ctx context.Context, key string) {
	if r.window <= 0 {
		return
	}
	if err := r.cli.Del(ctx, keyPrefix+":"+key).Err(); err != nil {
		r.logger.Warn("Throttle reset failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (r *Redis) Close() error {
	return r.cli.Close()
}
