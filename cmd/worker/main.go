package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"apsconnect/internal/config"
	"apsconnect/internal/notify"
	"apsconnect/internal/store"
)

const realtimeChannel = "apsconnect:notifications"

// Worker drains the notification queue and publishes each row on the Redis
// pub/sub channel consumed by realtime clients. Delivery stays best-effort:
// failures are logged, never retried.
func main() {
	cfg := config.Load()
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg)
	repo := notify.NewRepository(db.Client)

	var q notify.Queue
	if cfg.QueueBackend == "memory" {
		q = notify.NewInMemory(64)
	} else {
		q = notify.NewRedisQueue(redisClient.Client, "apsconnect:notifications:queue")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}

	logger.Info("worker started, waiting for messages")
	for msg := range messages {
		if msg.Type != "notification" {
			continue
		}

		id := string(msg.Body)
		n, err := repo.Get(ctx, id)
		if err != nil {
			logger.Warn("fetch notification failed", zap.String("id", id), zap.Error(err))
			continue
		}

		payload, err := json.Marshal(n)
		if err != nil {
			logger.Warn("marshal notification failed", zap.String("id", id), zap.Error(err))
			continue
		}
		if err := redisClient.Client.Publish(ctx, realtimeChannel, payload).Err(); err != nil {
			logger.Warn("realtime publish failed", zap.String("id", id), zap.Error(err))
			continue
		}
		logger.Info("notification dispatched", zap.String("id", id))
	}

	logger.Info("worker stopped")
}
