// Package main runs the seminar portal HTTP server with the broadcast channel and graceful shutdown.
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

	"github.com/aura-webinar/seminar-portal/config"
	"github.com/aura-webinar/seminar-portal/internal/auth"
	"github.com/aura-webinar/seminar-portal/internal/chat"
	"github.com/aura-webinar/seminar-portal/internal/customers"
	"github.com/aura-webinar/seminar-portal/internal/meeting"
	"github.com/aura-webinar/seminar-portal/internal/middleware"
	"github.com/aura-webinar/seminar-portal/internal/realtime"
	"github.com/aura-webinar/seminar-portal/internal/schedules"
	"github.com/aura-webinar/seminar-portal/internal/sessionlog"
	"github.com/aura-webinar/seminar-portal/pkg/database"
	"github.com/aura-webinar/seminar-portal/pkg/queue"
	"github.com/aura-webinar/seminar-portal/pkg/redis"
	"github.com/aura-webinar/seminar-portal/pkg/response"
	"github.com/aura-webinar/seminar-portal/pkg/storage"
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

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis is optional: without it broadcasts stay in-process and beacons close inline.
	var (
		hub      *realtime.Hub
		jobQueue *queue.Queue
	)
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable; relay and job queue disabled", zap.Error(err))
		hub = realtime.NewHub(logger, nil, nil)
	} else {
		defer rdb.Close()
		jobQueue = queue.NewQueue(rdb.Client, logger)
		redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
		if cfg.Redis.Relay {
			hub = realtime.NewHub(logger, redisPubSub, redisPubSub)
		} else {
			// Still listen so worker notices (auto_end_due) reach local clients.
			hub = realtime.NewHub(logger, nil, redisPubSub)
		}
	}

	var images schedules.ImageStore
	if cfg.AWS.ImagesBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ImagesBucket:    cfg.AWS.ImagesBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			images = s3Client
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Repositories
	scheduleRepo := schedules.NewRepository(pool)
	customerRepo := customers.NewRepository(pool)
	sessionRepo := sessionlog.NewRepository(pool)
	chatRepo := chat.NewRepository(pool)
	adminRepo := auth.NewRepository(pool)

	// Identity gate
	authSvc := auth.NewService(adminRepo, customerRepo, scheduleRepo, jwtService, logger)
	if cfg.Admin.Email != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name); err != nil {
			logger.Fatal("admin bootstrap", zap.Error(err))
		}
	}
	authHandler := auth.NewHandler(authSvc, logger)

	// Schedules and lifecycle
	controller := schedules.NewController(scheduleRepo, hub, logger)
	scheduleHandler := schedules.NewHandler(scheduleRepo, controller, sessionRepo, images, logger)

	// Presence tracker (viewing sessions)
	var closer sessionlog.CloseDispatcher
	if jobQueue != nil {
		closer = jobQueue
	}
	tracker := sessionlog.NewTracker(sessionRepo, scheduleRepo, hub, closer, logger)
	sessionHandler := sessionlog.NewHandler(tracker, sessionRepo, logger)

	// Chat moderation
	chatSvc := chat.NewService(chatRepo, scheduleRepo, hub, hub, chat.Limits{
		History:    cfg.Chat.HistoryLimit,
		Moderation: cfg.Chat.ModerationLimit,
		MaxContent: cfg.Chat.MaxContent,
		MaxName:    cfg.Chat.MaxName,
	}, logger)
	chatHandler := chat.NewHandler(chatSvc, logger)

	// Customers
	customerHandler := customers.NewHandler(customers.NewService(customerRepo), logger)

	// Meeting widget
	signer, err := meeting.NewSigner(cfg.Meeting.Provider,
		meeting.ZoomConfig{SDKKey: cfg.Meeting.ZoomSDKKey, SDKSecret: cfg.Meeting.ZoomSDKSecret},
		meeting.ZegoConfig{AppID: cfg.Meeting.ZegoAppID, ServerSecret: cfg.Meeting.ZegoServerSecret},
	)
	if err != nil {
		logger.Warn("meeting provider disabled", zap.Error(err))
	}
	meetingHandler := meeting.NewHandler(scheduleRepo, signer, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok", "redis": rdb != nil && rdb.Healthy(c.Request.Context())}
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, status)
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/admin/login", authHandler.AdminLogin)
	}

	// Leave beacon (sendBeacon cannot set headers; the session id is the capability)
	router.POST("/api/session", sessionHandler.Beacon)

	// Viewer pages (customer or admin token)
	watch := router.Group("/watch/:slug")
	watch.Use(middleware.JWT(jwtService))
	{
		watch.GET("", scheduleHandler.Watch)
		watch.POST("/sessions", sessionHandler.Attach)
		watch.GET("/chat", chatHandler.History)
		watch.POST("/chat", chatHandler.Submit)
		watch.GET("/meeting", meetingHandler.Join)
	}

	// Admin console
	admin := router.Group("/admin")
	admin.Use(middleware.JWT(jwtService), middleware.RequireAdmin())
	{
		admin.GET("/dashboard", scheduleHandler.Dashboard)

		admin.GET("/schedules", scheduleHandler.List)
		admin.POST("/schedules", scheduleHandler.Create)
		admin.GET("/schedules/:id", scheduleHandler.Get)
		admin.PUT("/schedules/:id", scheduleHandler.Update)
		admin.PUT("/schedules/:id/meeting", scheduleHandler.UpdateMeeting)
		admin.DELETE("/schedules/:id", scheduleHandler.Delete)
		admin.POST("/schedules/:id/images/:kind", scheduleHandler.UploadImage)
		admin.POST("/schedules/:id/status", scheduleHandler.SetStatus)
		admin.POST("/schedules/:id/test-live", scheduleHandler.SetTestLive)
		admin.GET("/schedules/:id/viewers", sessionHandler.Viewers)
		admin.GET("/schedules/:id/sessions", sessionHandler.Sessions)
		admin.GET("/schedules/:id/access-logs", sessionHandler.AccessLogs)
		admin.GET("/schedules/:id/chat", chatHandler.ModerationQueue)
		admin.PATCH("/chat/:id", chatHandler.Decide)

		admin.GET("/customers", customerHandler.List)
		admin.POST("/customers", customerHandler.Create)
		admin.PUT("/customers/:id", customerHandler.Update)
		admin.POST("/customers/:id/toggle", customerHandler.Toggle)
		admin.DELETE("/customers/:id", customerHandler.Delete)
	}

	// Broadcast channel (token in query; browsers cannot set headers on WebSocket)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtService.ResolveViewer, schedules.AuthorizeTopic(scheduleRepo)))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
