package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"chat-app-service/internal/cache"
	"chat-app-service/internal/config"
	"chat-app-service/internal/db"
	grpcclient "chat-app-service/internal/grpc"
	"chat-app-service/internal/handlers"
	"chat-app-service/internal/kafka"
	"chat-app-service/internal/logger"
	"chat-app-service/internal/middleware"
	"chat-app-service/internal/notify"
	"chat-app-service/internal/observability"
	"chat-app-service/internal/rabbitmq"
	"chat-app-service/internal/repositories"
	"chat-app-service/internal/services"
	"chat-app-service/internal/telemetry"
	"chat-app-service/internal/ties"
	"chat-app-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger := logger.New(logger.Config{
		Service: cfg.Service,
		Env:     cfg.Env,
		Level:   cfg.Log.Level,
		Backend: cfg.Log.Backend,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Service:     cfg.Service,
		Environment: cfg.Env,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	database, err := db.Connect(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithUnaryInterceptor(observability.GRPCClientMetricsUnaryInterceptor()),
	}
	userConn, err := grpc.NewClient(cfg.Upstream.UserGRPCAddr, dialOpts...)
	if err != nil {
		log.Fatalf("failed to connect to user grpc: %v", err)
	}
	defer userConn.Close()

	roomConn, err := grpc.NewClient(cfg.Upstream.RoomGRPCAddr, dialOpts...)
	if err != nil {
		log.Fatalf("failed to connect to room grpc: %v", err)
	}
	defer roomConn.Close()

	var rooms services.RoomDirectory = grpcclient.NewRoomClient(roomConn)
	if cfg.Redis.Addr != "" {
		rdb := cache.NewRedisClient(cfg.Redis.Addr)
		defer rdb.Close()
		rooms = cache.NewRoomCache(rooms, rdb, cfg.Redis.RoomTTL, appLogger)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, appLogger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", cfg.Service, cfg.Env, appLogger)

	reconcile := kafka.NewReconcileWriter(cfg.Kafka.Brokers, cfg.Kafka.ReconcileTopic, appLogger)
	defer reconcile.Close()

	hub := ws.NewHub(appLogger)
	emitter := notify.NewEmitter(cfg.Notify.Timeout, appLogger, hub, notify.NewBrokerChannel(publisher))

	chatService := services.NewChatService(services.Deps{
		Tx:            db.NewTransactor(database),
		Chats:         repositories.NewChatRepo(),
		Users:         repositories.NewUserRepo(),
		Messages:      repositories.NewMessageRepo(),
		Rooms:         rooms,
		Directory:     grpcclient.NewUserClient(userConn),
		Ties:          ties.NewClient(cfg.Upstream.TiesBaseURL, cfg.Upstream.Timeout),
		Notifier:      emitter,
		Reconcile:     reconcile,
		Logger:        appLogger,
		RemoteTimeout: cfg.Upstream.Timeout,
	})

	tokens := middleware.NewTokenParser(cfg.Auth.JWTSecret)
	chatHandler := handlers.NewChatHandler(chatService, audit, appLogger)
	chatWS := ws.NewChatWebSocketHandler(hub, chatService, tokens, appLogger)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(otelgin.Middleware(cfg.Service))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(gin.Recovery())

	authed := router.Group("/", middleware.AuthMiddleware(tokens))
	chatHandler.Register(authed)
	chatHandler.RegisterInternal(authed)
	router.GET("/ws/chats/:chat_id", chatWS.Handle)
	handlers.RegisterOpsRoutes(router, database)
	handlers.RegisterDebugRoutes(router, audit, cfg.Debug)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("http server listening",
			slog.String("addr", srv.Addr),
			slog.String("amqp_mode", rabbitmq.PublisherMode(publisher)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown failed", slog.Any("error", err))
	}
	emitter.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLogger.Error("tracing shutdown failed", slog.Any("error", err))
	}
}
