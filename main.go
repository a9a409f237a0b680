package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/courseloom/marketplace/api"
	tracerConfig "github.com/courseloom/marketplace/config"
	"github.com/courseloom/marketplace/config/database"
	"github.com/courseloom/marketplace/config/kafka"
	"github.com/courseloom/marketplace/config/redis"
	"github.com/courseloom/marketplace/config/stripe"
	"github.com/courseloom/marketplace/models"
	"github.com/courseloom/marketplace/services"
	"github.com/courseloom/marketplace/utils"
	"github.com/courseloom/marketplace/webhooks"
)

const (
	envEnv                      = "ENV"
	envSentryDsn                = "SENTRY_DSN"
	envOtelExporterOtlpEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOtelInsecure             = "OTEL_INSECURE"
	envOtelServiceName          = "OTEL_SERVICE_NAME"

	envHTTPAddress = "HTTP_ADDRESS"
	envAppBaseURL  = "APP_BASE_URL"
	envJWTSecret   = "JWT_SECRET"

	envDatabaseURL      = "DATABASE_URL"
	envDatabaseMaxConns = "DATABASE_MAX_CONNS"
	envDatabaseMigrate  = "DATABASE_MIGRATE"

	envRedisAddress       = "REDIS_ADDRESS"
	envRedisPassword      = "REDIS_PASSWORD"
	envCheckoutRateLimit  = "CHECKOUT_RATE_LIMIT"
	envCheckoutRateWindow = "CHECKOUT_RATE_WINDOW"

	envKafkaBrokers            = "KAFKA_BROKERS"
	envKafkaNotificationsTopic = "KAFKA_NOTIFICATIONS_TOPIC"
	envKafkaUsername           = "KAFKA_USERNAME"
	envKafkaPassword           = "KAFKA_PASSWORD"
	envKafkaScramAlgorithm     = "KAFKA_SCRAM_ALGORITHM"
	envKafkaTLS                = "KAFKA_TLS"

	envStripeAPIKey        = "STRIPE_API_KEY"
	envStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	envClerkWebhookSecret  = "CLERK_WEBHOOK_SECRET"
)

func main() {
	godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).
		With("service", "marketplace")
	slog.SetDefault(logger)

	setupGracefulShutdown(cancel, logger)

	otelEndpoint := os.Getenv(envOtelExporterOtlpEndpoint)
	if otelEndpoint != "" {
		telemetryCfg := tracerConfig.TracerConfig{
			ServiceName: os.Getenv(envOtelServiceName),
			EndpointURL: otelEndpoint,
			Insecure:    os.Getenv(envOtelInsecure),
		}
		tracerConfig.InitOTLPTracer(telemetryCfg)
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv(envSentryDsn),
		Environment:      os.Getenv(envEnv),
		Debug:            false,
		AttachStacktrace: true,
	})
	if err != nil {
		fmt.Printf("Sentry initialization failed: %v\n", err)
	}
	defer sentry.Flush(2 * time.Second)

	if err := run(ctx, logger); err != nil {
		logger.Error("fatal error", slog.String("error", err.Error()))
		utils.CaptureError(err)
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	maxConns, err := utils.GetEnvAsInt(envDatabaseMaxConns, 10)
	if err != nil {
		return err
	}

	db, err := database.NewConnection(database.DBConfig{
		Url:      os.Getenv(envDatabaseURL),
		MaxConns: int32(maxConns),
	})
	if err != nil {
		return err
	}
	defer db.Close()

	store := models.NewStore(db)
	if utils.GetEnvAsBool(envDatabaseMigrate, false) {
		if err := store.Migrate(); err != nil {
			return err
		}
	}

	limiter, err := newRateLimiter(ctx)
	if err != nil {
		return err
	}
	defer limiter.Close()

	notifier, err := newNotifier(logger)
	if err != nil {
		return err
	}

	gateway := stripe.NewClient(stripe.GatewayConfig{
		APIKey: os.Getenv(envStripeAPIKey),
	})

	identities := services.NewIdentityService(store, notifier)
	checkouts := services.NewCheckoutService(store, gateway, limiter, os.Getenv(envAppBaseURL), logger)
	entitlements := services.NewEntitlementService(store, notifier, logger)
	subscriptions := services.NewSubscriptionSyncService(store, logger)
	access := services.NewAccessService(store)

	router := api.NewRouter(api.Deps{
		Checkouts:     checkouts,
		Access:        access,
		Courses:       store,
		StripeWebhook: webhooks.NewStripeHandler(entitlements, subscriptions, os.Getenv(envStripeWebhookSecret), logger),
		ClerkWebhook:  webhooks.NewClerkHandler(identities, os.Getenv(envClerkWebhookSecret), logger),
		JWTSecret:     os.Getenv(envJWTSecret),
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              utils.GetEnv(envHTTPAddress, ":8080"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("server listening", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("shutting down server")
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func newRateLimiter(ctx context.Context) (*models.RateLimitStore, error) {
	redisDB, err := redis.NewRedisDB(ctx, redis.RedisConfig{
		Address:   utils.GetEnv(envRedisAddress, "localhost:6379"),
		Password:  os.Getenv(envRedisPassword),
		UseTracer: os.Getenv(envOtelExporterOtlpEndpoint) != "",
	})
	if err != nil {
		return nil, err
	}

	limit, err := utils.GetEnvAsInt(envCheckoutRateLimit, 5)
	if err != nil {
		return nil, err
	}

	window, err := utils.GetEnvAsDuration(envCheckoutRateWindow, time.Minute)
	if err != nil {
		return nil, err
	}

	return models.NewRateLimitStore(ctx, redisDB, limit, window), nil
}

// newNotifier is optional infrastructure: without brokers configured the
// services run with notifications disabled.
func newNotifier(logger *slog.Logger) (*services.Notifier, error) {
	brokers := os.Getenv(envKafkaBrokers)
	if brokers == "" {
		logger.Info("no kafka brokers configured, notifications disabled")
		return services.NewNotifier(nil, logger), nil
	}

	producer, err := kafka.NewProducer(
		kafka.ServerConfig{
			ScramAlgorithm: os.Getenv(envKafkaScramAlgorithm),
			TLS:            utils.GetEnvAsBool(envKafkaTLS, false),
			Servers:        utils.ParseBrokersEnv(brokers),
			UserName:       os.Getenv(envKafkaUsername),
			Password:       os.Getenv(envKafkaPassword),
		},
		&kafka.ProducerConfig{
			Topic: utils.GetEnv(envKafkaNotificationsTopic, "marketplace.notifications"),
		},
	)
	if err != nil {
		return nil, err
	}

	return services.NewNotifier(producer, logger), nil
}

func setupGracefulShutdown(cancel context.CancelFunc, logger *slog.Logger) {
	signChan := make(chan os.Signal, 1)
	signal.Notify(signChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()
}
