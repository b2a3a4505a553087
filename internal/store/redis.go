package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"apsconnect/internal/config"
)

// Redis wraps the client backing the notification queue and the realtime
// pub/sub channel.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects with the configured operation timeout. Queue publishes
// happen on request paths, so a slow instance must fail fast rather than
// stall handlers.
func NewRedis(cfg config.App) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  2 * cfg.RedisTimeout,
		ReadTimeout:  cfg.RedisTimeout,
		WriteTimeout: cfg.RedisTimeout,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}
