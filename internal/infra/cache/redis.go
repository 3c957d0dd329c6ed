package cache

import (
	"context"
	"log/slog"

	"jwtauth/config"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Params holds dependencies for the redis client, injected by Fx.
type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// New creates the redis client and ties its lifetime to the application.
func New(params Params) (*redis.Client, error) {
	if params.Config.Redis == nil || params.Config.Redis.Addr == "" {
		return nil, errors.New("redis config is not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     params.Config.Redis.Addr,
		Password: params.Config.Redis.Password,
		DB:       params.Config.Redis.DB,
	})

	params.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return errors.Wrap(err, "failed to ping redis")
			}
			params.Logger.Info("Redis connected", slog.String("addr", params.Config.Redis.Addr))

			return nil
		},
		OnStop: func(ctx context.Context) error {
			params.Logger.Info("Closing redis client")

			return errors.Wrap(client.Close(), "failed to close redis client")
		},
	})

	return client, nil
}
