package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/cache"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/notify"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/service"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

const serviceName = "messaging-service"

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownTracer := observability.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("tracer shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	displayCache := cache.New(cfg.RedisURL)
	defer displayCache.Close()

	notifier := notify.New(cfg.RedisURL)
	defer notifier.Close()

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	defer auditPublisher.Close()
	if mode := rabbitmq.PublisherMode(auditPublisher); mode == "noop" {
		log.Printf("audit publisher mode=%s reason=%s", mode, rabbitmq.PublisherNoopReason(auditPublisher))
	} else {
		log.Printf("audit publisher mode=%s", mode)
	}
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit.messaging", serviceName, cfg.Environment)

	if wsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AuditExchange); err != nil {
		log.Printf("ws event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(wsPublisher)
		defer wsPublisher.Close()
	}

	userDirectory := repositories.NewUserDirectoryRepo(database, displayCache)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	hub := ws.NewHub()

	messaging := service.NewMessagingService(conversationRepo, messageRepo, userDirectory, hub, notifier)

	messagingHandler := handlers.NewMessagingHandler(messaging, userDirectory, audit)
	wsHandler := ws.NewWebSocketHandler(hub, userDirectory, cfg.JWTSecret)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.POST("/messages", authMiddleware, messagingHandler.SendMessage)
	router.DELETE("/messages/:message_id", authMiddleware, messagingHandler.DeleteMessage)
	router.GET("/messages/unread-count", authMiddleware, messagingHandler.UnreadCount)

	router.GET("/conversations", authMiddleware, messagingHandler.ListConversations)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, messagingHandler.OpenConversation)
	router.POST("/conversations/:conversation_id/read", authMiddleware, messagingHandler.MarkRead)
	router.POST("/conversations/:conversation_id/typing", authMiddleware, messagingHandler.Typing)
	router.DELETE("/conversations/:conversation_id", authMiddleware, messagingHandler.DeleteConversation)

	router.GET("/ws", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
