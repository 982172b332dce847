// --- File: cmd/notificationbridge/runnotificationbridge.go ---
package main

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-notification-bridge/bridgeservice"
	"github.com/tinywideclouds/go-notification-bridge/bridgeservice/config"
	"github.com/tinywideclouds/go-notification-bridge/internal/credentials"
	"github.com/tinywideclouds/go-notification-bridge/internal/handler"
	"github.com/tinywideclouds/go-notification-bridge/internal/pipeline"
	"github.com/tinywideclouds/go-notification-bridge/internal/platform/fcm"
	"github.com/tinywideclouds/go-notification-bridge/internal/platform/metrics"
	"github.com/tinywideclouds/go-notification-bridge/internal/platform/tracing"
	pstrigger "github.com/tinywideclouds/go-notification-bridge/internal/trigger/pubsub"
	"github.com/tinywideclouds/go-notification-bridge/pkg/dispatch"
)

//go:embed local.yaml
var configFile []byte

const providerName = "fcm"

func main() {
	// Local runs keep the Firebase credential triple in .env.
	_ = godotenv.Load()

	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-notification-bridge")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Failed to map yaml config", "err", err)
		os.Exit(1)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Infrastructure Clients ---
	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("PubSub client failed", "err", err)
		os.Exit(1)
	}
	defer psClient.Close()

	if cfg.EnsureSubscription {
		err = pstrigger.EnsureSubscription(ctx, psClient, pstrigger.SubscriptionSpec{
			ProjectID:           cfg.ProjectID,
			TopicID:             cfg.TopicID,
			SubscriptionID:      cfg.SubscriptionID,
			DLQTopicID:          cfg.SubscriptionDLQTopicID,
			MaxDeliveryAttempts: int32(cfg.MaxDeliveryAttempts),
			MinimumBackoff:      10 * time.Second,
		}, logger)
		if err != nil {
			logger.Error("Subscription setup failed", "err", err)
			os.Exit(1)
		}
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sendCollectors, err := metrics.NewCollectors(registry)
	if err != nil {
		logger.Error("Metrics registration failed", "err", err)
		os.Exit(1)
	}

	// --- Provider (lazy) ---
	// Credentials are read on the first batch, not at startup.
	loader := credentials.NewLoader(credentials.FromEnv(), credentials.NewFirebaseClient, logger)
	senderFactory := func(client fcm.MessagingClient) dispatch.Sender {
		var sender dispatch.Sender = fcm.NewSender(client, cfg.Batch.SendTimeout, logger)
		sender = metrics.NewSender(sender, providerName, sendCollectors)
		// Spans are exported only if the host process installs an otel provider.
		return tracing.NewSender(sender, providerName, nil)
	}

	processor := pipeline.NewBatchProcessor(pipeline.NotificationRequestDecoder, logger)
	batchHandler := handler.New(loader, senderFactory, processor, logger)

	// --- Triggers ---
	consumer, err := pstrigger.NewConsumer(psClient, pstrigger.Config{
		SubscriptionID: cfg.SubscriptionID,
		MaxBatchSize:   cfg.Batch.MaxSize,
		MaxBatchWait:   cfg.Batch.MaxWait,
	}, batchHandler, logger)
	if err != nil {
		logger.Error("Consumer creation failed", "err", err)
		os.Exit(1)
	}

	authMiddleware, err := newAuthMiddleware(cfg, logger)
	if err != nil {
		logger.Error("Auth setup failed", "err", err)
		os.Exit(1)
	}

	service, err := bridgeservice.New(cfg, consumer, batchHandler, registry, authMiddleware, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := service.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown error", "err", err)
		}
	}()

	logger.Info("Starting service...", "listen_addr", cfg.ListenAddr, "subscription_id", cfg.SubscriptionID)
	if err := service.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Service shutdown with error", "err", err)
		os.Exit(1)
	}
}

// newAuthMiddleware protects the invoke endpoint with JWKS-validated JWTs when an
// identity service is configured. Without one the endpoint is open; deploy it
// behind an authenticating proxy.
func newAuthMiddleware(cfg *config.Config, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	if cfg.IdentityServiceURL == "" {
		logger.Warn("IDENTITY_SERVICE_URL not set, invoke endpoint is unauthenticated")
		return func(h http.Handler) http.Handler { return h }, nil
	}
	jwksURL, err := middleware.DiscoverAndValidateJWTConfig(cfg.IdentityServiceURL, middleware.RSA256, logger)
	if err != nil {
		return nil, err
	}
	return middleware.NewJWKSAuthMiddleware(jwksURL, logger)
}
