package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dm-service/internal/config"
	"dm-service/internal/db"
	"dm-service/internal/handlers"
	"dm-service/internal/middleware"
	"dm-service/internal/observability"
	"dm-service/internal/rabbitmq"
	"dm-service/internal/repositories"
	"dm-service/internal/services"
	"dm-service/internal/telemetry"
	"dm-service/internal/tracing"
	"dm-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := tracing.Init(context.Background(), cfg.OTLPEndpoint, "dm-service", cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	if cfg.AMQPURL != "" {
		eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Printf("event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(eventPublisher)
			defer eventPublisher.Close()
		}
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, "audit_log.dm", "dm-service", cfg.Environment)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	registry := ws.NewRegistry()
	dispatcher := ws.NewDispatcher(registry)
	messaging := services.NewMessagingService(conversationRepo, messageRepo, dispatcher)

	messageHandler := handlers.NewMessageHandler(messaging, auditEmitter)
	presenceHandler := handlers.NewPresenceHandler(registry)
	wsHandler := ws.NewHandler(registry, dispatcher, messaging, cfg.JWTSecret)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("dm-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.GET("/conversations", authMiddleware, messageHandler.ListConversations)
	router.GET("/messages/:user_id", authMiddleware, messageHandler.GetMessages)
	router.POST("/messages/:user_id", authMiddleware, messageHandler.SendMessage)
	router.GET("/presence/online", authMiddleware, presenceHandler.OnlineUsers)

	router.GET("/ws", wsHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", handlers.HealthHandler(database))

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
