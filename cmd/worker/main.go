// Package main runs the background worker: queued session closes and the overdue-live monitor.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/seminar-portal/config"
	"github.com/aura-webinar/seminar-portal/internal/realtime"
	"github.com/aura-webinar/seminar-portal/internal/schedules"
	"github.com/aura-webinar/seminar-portal/internal/sessionlog"
	"github.com/aura-webinar/seminar-portal/internal/worker"
	"github.com/aura-webinar/seminar-portal/pkg/database"
	"github.com/aura-webinar/seminar-portal/pkg/queue"
	"github.com/aura-webinar/seminar-portal/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	scheduleRepo := schedules.NewRepository(pool)
	sessionRepo := sessionlog.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// The worker has no channel clients; presence is only read by the server.
	tracker := sessionlog.NewTracker(sessionRepo, scheduleRepo, nil, nil, logger)
	processor := worker.NewSessionProcessor(jobQueue, tracker, logger)

	monitor := worker.NewAutoEndMonitor(scheduleRepo, realtime.NewRedisPubSub(rdb.Client, logger), logger)
	cronRunner, err := monitor.Start(cfg.Worker.AutoEndCron)
	if err != nil {
		logger.Fatal("auto-end monitor", zap.Error(err), zap.String("schedule", cfg.Worker.AutoEndCron))
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	stopped := cronRunner.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(5 * time.Second):
		logger.Warn("auto-end sweep still running at shutdown")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
