package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"course-chat-service/internal/auth"
	"course-chat-service/internal/config"
	"course-chat-service/internal/db"
	"course-chat-service/internal/handlers"
	"course-chat-service/internal/middleware"
	"course-chat-service/internal/observability"
	"course-chat-service/internal/rabbitmq"
	"course-chat-service/internal/repositories"
	"course-chat-service/internal/telemetry"
	"course-chat-service/internal/ws"
)

func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracer, err := observability.InitTracer(context.Background(), "course-chat-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer(context.Background())

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))
	observability.SetPublisher(publisher)

	audit := telemetry.NewAuditEmitter(publisher, "audit_log.chats", "course-chat-service", cfg.Env)

	verifier := auth.NewVerifier(cfg.JWTSecret)

	sessionRepo := repositories.NewSessionRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	registry := ws.NewRegistry()
	broker := ws.NewBroker(registry)

	chatHandler := handlers.NewChatHandler(sessionRepo, messageRepo, userRepo, broker, audit)
	socketHandler := ws.NewSocketHandler(registry, broker, sessionRepo, verifier)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("course-chat-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.POST("/chats", authMiddleware, chatHandler.StartChat)
	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.POST("/chats/:chat_id/messages", authMiddleware, chatHandler.PostChatMessage)
	router.POST("/chats/:chat_id/read", authMiddleware, chatHandler.MarkRead)
	router.PATCH("/chats/:chat_id/archive", authMiddleware, chatHandler.ArchiveChat)
	router.PATCH("/chats/:chat_id/unarchive", authMiddleware, chatHandler.UnarchiveChat)
	router.PATCH("/chats/:chat_id/flag", authMiddleware, chatHandler.FlagChat)
	router.PATCH("/chats/:chat_id/unflag", authMiddleware, chatHandler.UnflagChat)
	router.DELETE("/chats/:chat_id", authMiddleware, chatHandler.DeleteChat)

	router.GET("/ws", socketHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
