package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/retailiq/customer-segmentation/internal/adapters/database"
	"github.com/retailiq/customer-segmentation/internal/api/handlers"
	"github.com/retailiq/customer-segmentation/internal/api/routes"
	"github.com/retailiq/customer-segmentation/internal/application/services"
	"github.com/retailiq/customer-segmentation/internal/domain/providers"
	"github.com/retailiq/customer-segmentation/internal/domain/repositories"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/clients/postgres"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/clients/redis"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/mlmodel"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/notifications"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/observability"
	"github.com/retailiq/customer-segmentation/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)
	logger := observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	var shutdown func(context.Context) error
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err = observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// The fitted scaler/k-means artifacts are loaded once at startup and
	// shared read-only across requests. Missing artifacts are fatal: the
	// process refuses to serve scoring requests without them.
	artifacts, err := mlmodel.Load(cfg.Models.Dir, cfg.Models.ScalerFile, cfg.Models.KMeansFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("model artifacts unavailable")
	}
	logger.Info().
		Str("dir", cfg.Models.Dir).
		Int("clusters", artifacts.KMeans.Clusters).
		Msg("model artifacts loaded")

	// Redis is optional; without it the upload idempotency guard is off.
	var redisNative *redislib.Client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable; idempotency guard disabled")
	} else {
		defer redisClient.Close()
		redisNative = redisClient.Client()
		logger.Info().Msg("Redis client initialized")
	}

	// The Postgres run archive is optional; the pipeline itself keeps no
	// customer state between invocations either way.
	var runRepo repositories.RunRepository
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Warn().Err(err).Msg("PostgreSQL unavailable; run archive disabled")
	} else {
		defer pgClient.Close()
		runRepo = database.NewRunAdapter(pgClient)
		logger.Info().Msg("run archive initialized")
	}

	// Outbound mail is optional; segmentation works without it and dispatch
	// requests are rejected with a clear error.
	var mailSender providers.MailSender
	if cfg.SMTP.Configured() {
		sender, err := notifications.NewSMTPSender(&cfg.SMTP)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize SMTP sender; dispatch disabled")
		} else {
			mailSender = sender
			logger.Info().Str("host", cfg.SMTP.Host).Msg("SMTP sender initialized")
		}
	} else {
		logger.Warn().Msg("EMAIL_USER/EMAIL_PASS not set; message dispatch disabled")
	}

	segmentationService := services.NewSegmentationService(
		services.NewCleaningService(cfg.Models.CancelMarker),
		services.NewFeatureService(),
		services.NewScoringService(artifacts.Scaler, artifacts.KMeans),
		services.NewMessagingService(mailSender),
		runRepo,
	)

	segmentationHandler := handlers.NewSegmentationHandler(
		segmentationService,
		redisNative,
		24*time.Hour,
		mailSender != nil,
		metrics,
	)

	var runHandler *handlers.RunHandler
	if runRepo != nil {
		runHandler = handlers.NewRunHandler(runRepo)
	}

	router := routes.NewRouter(segmentationHandler, runHandler, metrics)
	handler := router.SetupRoutes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	logger.Info().Msg("server stopped")
}
