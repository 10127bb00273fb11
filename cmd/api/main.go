package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/c2c-marketplace/backend/internal/config"
	"github.com/c2c-marketplace/backend/internal/db"
	"github.com/c2c-marketplace/backend/internal/events"
	apphttp "github.com/c2c-marketplace/backend/internal/http"
	"github.com/c2c-marketplace/backend/internal/http/handlers"
	"github.com/c2c-marketplace/backend/internal/idempotency"
	"github.com/c2c-marketplace/backend/internal/metrics"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/c2c-marketplace/backend/internal/payment"
	"github.com/c2c-marketplace/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var stores services.Stores
	if cfg.StorageBackend == config.StorageBackendMemory {
		log.Warn("using in-memory storage, state is lost on restart")
		stores = services.MemoryStores()
	} else {
		pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		stores = services.PostgresStores(pool)
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Events
	publishers := []events.Publisher{events.NewRedisPublisher(rdb, log)}
	if len(cfg.KafkaBrokers) > 0 {
		kafka := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, log)
		defer kafka.Close()
		publishers = append(publishers, kafka)
	}
	publisher := events.NewMultiPublisher(publishers...)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	m := metrics.New()
	fee := models.BasisPointsFee(cfg.PlatformFeeBPS)
	var processor payment.Processor
	if cfg.StripeSecretKey != "" {
		processor = payment.NewStripeProcessor(cfg.StripeSecretKey, log)
	}
	chat := services.NewChatClient(cfg.ChatInternalURL, log)
	catalog := services.NewCatalogClient(cfg.CatalogInternalURL, log)

	orderService := services.NewOrderService(stores.Orders, stores.Negotiations, stores.Audit, catalog, processor, fee, publisher, m, cfg, log)
	negotiationService := services.NewNegotiationService(stores.Negotiations, stores.Audit, chat, catalog, publisher, m, cfg, log)
	disputeService := services.NewDisputeService(stores.Orders, stores.Disputes, stores.Audit, fee, publisher, m, cfg, log)
	payoutService := services.NewPayoutService(stores.Payouts, stores.BankProfiles, stores.Audit, publisher, m, cfg, log)
	profileService := services.NewBankProfileService(stores.BankProfiles, stores.Audit, log)

	// Handlers
	orderHandler := handlers.NewOrderHandler(orderService, log)
	negotiationHandler := handlers.NewNegotiationHandler(negotiationService, log)
	disputeHandler := handlers.NewDisputeHandler(disputeService, log)
	payoutHandler := handlers.NewPayoutHandler(payoutService, profileService, log)
	webhookHandler := handlers.NewWebhookHandler(orderService, idempotency.New(rdb, "stripe", cfg.WebhookDedupeTTL), cfg.StripeWebhookSecret, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, m, orderHandler, negotiationHandler, disputeHandler, payoutHandler, webhookHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.String("storage", cfg.StorageBackend))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
