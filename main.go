package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/consistency"
	"messaging-service/internal/db"
	grpcserver "messaging-service/internal/grpc"
	"messaging-service/internal/handlers"
	"messaging-service/internal/jobs"
	"messaging-service/internal/logger"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	database, err := db.Connect(cfg.DB.DSN, log)
	if err != nil {
		log.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)),
	)
	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.messaging", cfg.Telemetry.ServiceName, cfg.Server.Environment, log)

	hub := ws.NewHub(log)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		relay := ws.NewRedisRelay(rdb, hub, log)
		hub.SetFanout(relay)
		go relay.Run(ctx)
		log.Info("redis notification relay enabled", zap.String("addr", cfg.Redis.Addr))
	}

	store := repositories.NewSQLStore(database)
	engine := consistency.NewEngine(log, hub)
	tokens := auth.NewManager(cfg.JWT)

	messageService := services.NewMessageService(store, engine, log)
	unreadMessages := services.NewUnreadMessages(store, log)
	userService := services.NewUserService(store, engine, tokens, auditEmitter, log)
	notificationService := services.NewNotificationService(store)

	messageHandler := handlers.NewMessageHandler(messageService, unreadMessages)
	userHandler := handlers.NewUserHandler(userService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	notificationWS := ws.NewNotificationWebSocketHandler(hub, tokens)

	if cfg.Server.Environment != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(observability.RequestIDMiddleware())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/users", userHandler.Register)
	router.POST("/auth/login", userHandler.Login)

	authed := router.Group("/", middleware.AuthMiddleware(tokens))
	authed.GET("/users/me", userHandler.Me)
	authed.DELETE("/users/me", userHandler.DeleteMe)

	authed.POST("/messages", messageHandler.SendMessage)
	authed.GET("/messages/sent", messageHandler.ListSent)
	authed.GET("/messages/unread", messageHandler.ListUnread)
	authed.GET("/messages/unread/count", messageHandler.UnreadCount)
	authed.POST("/messages/unread/read-all", messageHandler.MarkAllRead)
	authed.GET("/messages/:message_id", messageHandler.GetMessage)
	authed.PATCH("/messages/:message_id", messageHandler.EditMessage)
	authed.DELETE("/messages/:message_id", messageHandler.DeleteMessage)
	authed.POST("/messages/:message_id/read", messageHandler.MarkRead)
	authed.GET("/messages/:message_id/replies", messageHandler.ListReplies)
	authed.GET("/messages/:message_id/history", messageHandler.GetHistory)

	authed.GET("/notifications", notificationHandler.ListNotifications)
	authed.GET("/notifications/unread/count", notificationHandler.UnreadCount)
	authed.POST("/notifications/:notification_id/read", notificationHandler.MarkRead)

	router.GET("/ws/notifications", notificationWS.Handle)

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.Server.DebugRoutes)

	scheduler := cron.New()
	retention := jobs.NewNotificationRetention(store, cfg.Notification.RetentionDays, log)
	if _, err := retention.Schedule(scheduler, cfg.Notification.RetentionSchedule); err != nil {
		log.Fatal("invalid retention schedule", zap.String("schedule", cfg.Notification.RetentionSchedule), zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	healthServer := grpcserver.NewHealthServer(database, log)
	go healthServer.Watch(ctx, 15*time.Second)
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		log.Fatal("failed to listen for grpc", zap.Error(err))
	}
	go func() {
		if err := healthServer.Serve(lis); err != nil {
			log.Error("grpc server error", zap.Error(err))
		}
	}()
	defer healthServer.GracefulStop()

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: router}
	go func() {
		log.Info("http server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
}
