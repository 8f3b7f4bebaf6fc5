// Package app wires the delivery service together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"delivery-service/internal/auth"
	"delivery-service/internal/config"
	"delivery-service/internal/db"
	"delivery-service/internal/delivery"
	"delivery-service/internal/handlers"
	"delivery-service/internal/middleware"
	"delivery-service/internal/observability"
	"delivery-service/internal/presence"
	"delivery-service/internal/rabbitmq"
	"delivery-service/internal/services"
	"delivery-service/internal/telemetry"
	"delivery-service/internal/tracing"
	"delivery-service/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// App owns every long-lived component of the process.
type App struct {
	cfg *config.Config
	log *zap.Logger

	store     *db.Store
	publisher rabbitmq.Publisher
	events    *telemetry.EventEmitter
	consumer  *rabbitmq.Consumer
	redis     *redis.Client
	mirror    *presence.RedisMirror
	registry  *presence.Registry
	hub       *ws.Hub

	router     *gin.Engine
	grpcServer *grpc.Server
	health     *health.Server
	shutdown   tracing.Shutdown
}

// New builds the application from cfg. Network listeners are opened by Run.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	_, shutdown, err := tracing.Setup(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.shutdown = shutdown

	if a.store, err = db.NewStoreFromConfig(cfg.Database); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("store: %w", err)
	}

	a.publisher = rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
	log.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(a.publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(a.publisher)))
	a.events = telemetry.NewEventEmitter(a.publisher, cfg.Tracing.ServiceName, cfg.Environment, log)

	var observers []presence.Observer
	var toucher presence.Toucher
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.mirror = presence.NewRedisMirror(a.redis, cfg.Redis.PresenceTTL, log)
		observers = append(observers, a.mirror)
		toucher = a.mirror
	}
	a.registry = presence.NewRegistry(observers...)
	hooks := presence.NewHooks(a.registry, toucher, log)
	a.hub = ws.NewHub()
	fanout := delivery.NewFanout(a.registry, a.hub, log)

	notifications := services.NewNotificationService(a.store.Notifications, fanout, a.events, log)
	messages := services.NewMessageService(a.store.Conversations, a.store.Messages, fanout, a.events, log)
	reconciler := services.NewReconciler(a.store.Notifications, a.store.Conversations, a.store.Messages, log)

	if cfg.AMQP.URL != "" && cfg.AMQP.ConsumeActivity {
		a.consumer, err = rabbitmq.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.ActivityQueue, notifications, log)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("activity consumer: %w", err)
		}
	}

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)
	wsHandler := ws.NewHandler(a.hub, hooks, verifier, messages, reconciler, a.events, ws.Config{
		SendBuffer:   cfg.WebSocket.SendBuffer,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		PongWait:     cfg.WebSocket.PongWait,
		PingPeriod:   cfg.WebSocket.PingPeriod,
	}, log)

	paging := handlers.Paging{DefaultLimit: cfg.Pagination.DefaultLimit, MaxLimit: cfg.Pagination.MaxLimit}
	a.router = a.newRouter(
		middleware.AuthMiddleware(verifier),
		wsHandler,
		handlers.NewNotificationHandler(notifications, paging),
		handlers.NewMessageHandler(messages, paging),
		handlers.NewSyncHandler(reconciler),
	)

	a.health = health.NewServer()
	a.grpcServer = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	healthpb.RegisterHealthServer(a.grpcServer, a.health)
	a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return a, nil
}

func (a *App) newRouter(authMW gin.HandlerFunc, wsHandler *ws.Handler, notifications *handlers.NotificationHandler, messages *handlers.MessageHandler, sync *handlers.SyncHandler) *gin.Engine {
	if !a.cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(a.cfg.Tracing.ServiceName))
	router.Use(observability.RequestIDMiddleware())
	router.Use(observability.HTTPMetricsMiddleware())

	var pinger handlers.Pinger
	if a.store.DB != nil {
		pinger = a.store.DB
	}
	router.GET("/healthz", handlers.Health(pinger))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", wsHandler.Handle)

	router.GET("/notifications", authMW, notifications.List)
	router.POST("/notifications", authMW, notifications.Create)
	router.GET("/notifications/unread-count", authMW, notifications.UnreadCount)
	router.PUT("/notifications/read-all", authMW, notifications.MarkAllRead)
	router.PUT("/notifications/:id/read", authMW, notifications.MarkRead)

	router.GET("/messages/conversations", authMW, messages.ListConversations)
	router.POST("/messages/conversations", authMW, messages.StartConversation)
	router.GET("/messages/conversations/:id/messages", authMW, messages.ListMessages)
	router.POST("/messages/conversations/:id/messages", authMW, messages.PostMessage)
	router.PUT("/messages/conversations/:id/read", authMW, messages.MarkRead)
	router.DELETE("/messages/:id", authMW, messages.Recall)

	router.GET("/sync", authMW, sync.CatchUp)

	handlers.RegisterDebugRoutes(router, a.registry, a.hub, a.cfg.DebugRoutes)
	return router
}

// Handler exposes the HTTP router.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run serves HTTP and gRPC until ctx is done or a server fails, then shuts
// both down gracefully.
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", a.cfg.GRPCAddr, err)
	}
	httpServer := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// outlives ctx so disconnect events from CloseAll are still published
	emitCtx, stopEmit := context.WithCancel(context.WithoutCancel(ctx))
	defer stopEmit()
	go a.events.Run(emitCtx)
	if a.mirror != nil {
		go a.mirror.Run(ctx)
	}
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(ctx); err != nil {
				a.log.Error("activity consumer stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 2)
	go func() {
		a.log.Info("http server listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		a.log.Info("grpc server listening", zap.String("addr", a.cfg.GRPCAddr))
		if err := a.grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
	case runErr = <-errCh:
		a.log.Error("server failed", zap.Error(runErr))
	}

	a.health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http shutdown", zap.Error(err))
	}
	closed := a.hub.CloseAll()
	a.log.Info("websocket sessions closed", zap.Int("count", closed))
	a.grpcServer.GracefulStop()
	stopEmit()
	select {
	case <-a.events.Done():
	case <-shutdownCtx.Done():
		a.log.Warn("event queue not drained before shutdown timeout")
	}
	return runErr
}

// Close releases external resources. It is safe to call on a partially built
// App.
func (a *App) Close() error {
	var errs []error
	if a.consumer != nil {
		errs = append(errs, a.consumer.Close())
	}
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs = append(errs, a.shutdown(ctx))
	}
	return errors.Join(errs...)
}
