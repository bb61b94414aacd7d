package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"clinic-chat/internal/config"
	"clinic-chat/internal/db"
	"clinic-chat/internal/delivery"
	"clinic-chat/internal/grpcserver"
	"clinic-chat/internal/handlers"
	"clinic-chat/internal/imaging"
	"clinic-chat/internal/lifecycle"
	"clinic-chat/internal/logging"
	"clinic-chat/internal/middleware"
	"clinic-chat/internal/observability"
	"clinic-chat/internal/push"
	"clinic-chat/internal/rabbitmq"
	"clinic-chat/internal/repositories"
	"clinic-chat/internal/telemetry"
	"clinic-chat/internal/tracing"
	"clinic-chat/internal/ws"
)

const serviceName = "clinic-chat"

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Patient and staff messaging service",
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP, websocket and gRPC health servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			database, err := db.Connect(ctx, cfg.DatabaseDSN, cfg.DBMaxOpenConns)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.Migrate(ctx, database); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Schema is up to date.")
			return nil
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(serviceName, cfg.LogLevel, cfg.IsDev())
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	shutdownTracing, err := tracing.Setup(ctx, serviceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn().Err(err).Msg("tracing disabled")
		shutdownTracing = func(context.Context) error { return nil }
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN, cfg.DBMaxOpenConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	logger.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("noop_reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	events := observability.NewEvents(publisher, logger)
	audit := telemetry.NewAuditEmitter(publisher, serviceName, cfg.Env, logger)

	channelRepo := repositories.NewChannelRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	tokenRepo := repositories.NewTokenRepo(database)
	reviewRepo := repositories.NewReviewRepo(database)

	registry := ws.NewRegistry(logger, events, cfg.WSWriteTimeout)

	dispatcher, err := push.New(ctx, cfg.FirebaseCredentialsFile, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise push notifications")
	}

	coordinator := lifecycle.NewCoordinator(channelRepo, registry, audit, logger)
	deliverySvc := delivery.NewService(delivery.Deps{
		Messages:     messageRepo,
		Channels:     channelRepo,
		Tokens:       tokenRepo,
		Transcoder:   imaging.NewJPEGTranscoder(cfg.ImageMaxWidth, cfg.ImageJPEGQuality),
		Broadcaster:  registry,
		Dispatcher:   dispatcher,
		Audit:        audit,
		PruneTimeout: cfg.PushCleanupTimeout,
		Logger:       logger,
	})

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.Logger(logger))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", healthHandler(database, logger))
	handlers.RegisterDebugRoutes(router, audit, cfg.IsDev())

	handlers.Routes{
		Channels: handlers.NewChannelHandler(channelRepo, coordinator, logger),
		Messages: handlers.NewMessageHandler(messageRepo, deliverySvc, logger),
		Tokens:   handlers.NewTokenHandler(tokenRepo, logger),
		Reviews:  handlers.NewReviewHandler(reviewRepo, logger),
		Live:     ws.NewHandler(registry, logger),
	}.Register(router)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpcserver.New()
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Fatal().Err(err).Str("port", cfg.GRPCPort).Msg("failed to listen for grpc")
	}

	go func() {
		logger.Info().Str("port", cfg.GRPCPort).Msg("grpc health server listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Drain()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	registry.CloseAll("server shutdown")
	deliverySvc.Wait()
	grpcServer.Stop()

	if err := publisher.Close(); err != nil {
		logger.Warn().Err(err).Msg("close event publisher")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("flush traces")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func healthHandler(database *sqlx.DB, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.PingContext(ctx); err != nil {
			logger.Warn().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
