package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"apsconnect/internal/attendance"
	"apsconnect/internal/config"
	"apsconnect/internal/handler"
	"apsconnect/internal/identity"
	"apsconnect/internal/ledger"
	"apsconnect/internal/library"
	"apsconnect/internal/notify"
	"apsconnect/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func newLogger(cfg config.App) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if cfg.Env == "dev" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	db, err := store.NewDB(cfg)
	if err != nil {
		if db == nil {
			return err
		}
		logger.Warn("db not reachable", zap.Error(err))
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg)

	var q notify.Queue
	if cfg.QueueBackend == "memory" {
		q = notify.NewInMemory(64)
	} else {
		q = notify.NewRedisQueue(redisClient.Client, "apsconnect:notifications:queue")
	}

	notifySvc := notify.NewService(notify.NewRepository(db.Client), q, logger)
	identitySvc := identity.NewService(identity.NewRepository(db.Client), notifySvc, logger)
	attendanceSvc := attendance.NewService(attendance.NewRepository(db.Client), cfg.QRDefaultTTL, logger)
	librarySvc := library.NewService(library.NewRepository(db.Client, cfg.FinePerDay), logger)
	ledgerSvc := ledger.NewService(ledger.NewRepository(db.Client), logger)

	h := handler.New(cfg, logger, identitySvc, attendanceSvc, librarySvc, ledgerSvc, notifySvc)
	r := h.Router(db, redisClient)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}
