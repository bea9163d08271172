package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"conversation-service/internal/db"
	"conversation-service/internal/handlers"
	"conversation-service/internal/middleware"
	"conversation-service/internal/observability"
	"conversation-service/internal/rabbitmq"
	"conversation-service/internal/repositories"
	"conversation-service/internal/storage"
	"conversation-service/internal/telemetry"
	"conversation-service/internal/unread"
	"conversation-service/internal/ws"
)

func main() {
	ctx := context.Background()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracer, err := observability.InitTracer(ctx, "conversation-service")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("tracer shutdown: %v", err)
		}
	}()

	amqpURL := getEnv("AMQP_URL", "")
	publisher := rabbitmq.NewPublisher(amqpURL, getEnv("AMQP_EXCHANGE", "conversation.events"))
	defer publisher.Close()
	log.Printf("event publisher mode: %s", rabbitmq.PublisherMode(publisher))

	auditEmitter := telemetry.NewAuditEmitter(publisher,
		getEnv("AUDIT_ROUTING_KEY", "audit.conversation-service"),
		"conversation-service",
		getEnv("ENVIRONMENT", "dev"))

	if amqpURL != "" {
		wsPublisher, err := observability.NewAMQPPublisher(amqpURL, getEnv("WS_EVENTS_EXCHANGE", "ws.events"))
		if err != nil {
			log.Printf("ws event publisher unavailable, events dropped: %v", err)
		} else {
			observability.SetPublisher(wsPublisher)
			defer wsPublisher.Close()
		}
	}

	rdb := redis.NewClient(&redis.Options{Addr: getEnv("REDIS_ADDR", "localhost:6379")})
	unreadStore := unread.NewStore(rdb)
	defer unreadStore.Close()

	useSSL, _ := strconv.ParseBool(getEnv("MINIO_USE_SSL", "false"))
	blobs, err := storage.NewMinioStore(
		getEnv("MINIO_ENDPOINT", "localhost:9000"),
		getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		getEnv("MINIO_SECRET_KEY", "minioadmin"),
		getEnv("MINIO_BUCKET", "conversation-attachments"),
		useSSL)
	if err != nil {
		log.Fatalf("failed to init blob storage: %v", err)
	}

	convRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	receiptRepo := repositories.NewReceiptRepo(database)

	hub := ws.NewHub()
	verifier := middleware.NewTokenVerifier(getEnv("JWT_SECRET", "dev-secret"))

	conversationHandler := handlers.NewConversationHandler(convRepo, unreadStore)
	messageHandler := handlers.NewMessageHandler(convRepo, messageRepo, receiptRepo, hub, unreadStore, auditEmitter)
	receiptHandler := handlers.NewReceiptHandler(convRepo, receiptRepo, hub, unreadStore)
	attachmentHandler := handlers.NewAttachmentHandler(convRepo, messageRepo, blobs, hub)

	conversationWS := ws.NewConversationWebSocketHandler(hub, convRepo, messageRepo, receiptRepo, verifier)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware("conversation-service"))

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.POST("/conversations/start", authMiddleware, conversationHandler.StartConversation)
	router.GET("/conversations/:id/members", authMiddleware, conversationHandler.ListMembers)
	router.GET("/conversations/:id/messages", authMiddleware, messageHandler.GetMessages)
	router.POST("/conversations/:id/messages", authMiddleware, messageHandler.PostMessage)
	router.POST("/conversations/:id/receipts/delivered", authMiddleware, receiptHandler.MarkDelivered)
	router.POST("/conversations/:id/receipts/read", authMiddleware, receiptHandler.MarkRead)
	router.POST("/conversations/:id/messages/:message_id/attachment", authMiddleware, attachmentHandler.Upload)
	router.GET("/conversations/:id/messages/:message_id/attachment-url", authMiddleware, attachmentHandler.DownloadURL)

	router.GET("/ws/conversations/:conversation_id", conversationWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	debugEnabled, _ := strconv.ParseBool(getEnv("DEBUG_ROUTES", "false"))
	handlers.RegisterDebugRoutes(router, auditEmitter, debugEnabled)

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
