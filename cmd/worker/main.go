package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c2c-marketplace/backend/internal/config"
	"github.com/c2c-marketplace/backend/internal/db"
	"github.com/c2c-marketplace/backend/internal/events"
	"github.com/c2c-marketplace/backend/internal/metrics"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/c2c-marketplace/backend/internal/services"
	"github.com/c2c-marketplace/backend/internal/tracking"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)
	if cfg.StorageBackend == config.StorageBackendMemory {
		log.Fatal("worker needs shared storage, STORAGE_BACKEND=memory is not supported")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	stores := services.PostgresStores(pool)

	publishers := []events.Publisher{events.NewRedisPublisher(rdb, log)}
	if len(cfg.KafkaBrokers) > 0 {
		kafka := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, log)
		defer kafka.Close()
		publishers = append(publishers, kafka)
	}
	publisher := events.NewMultiPublisher(publishers...)

	// The worker never confirms payments or reads listings.
	orderService := services.NewOrderService(stores.Orders, stores.Negotiations, stores.Audit, nil, nil,
		models.BasisPointsFee(cfg.PlatformFeeBPS), publisher, metrics.New(), cfg, log)
	tracker := tracking.NewParser(cfg.TrackingURLTemplates, cfg.TrackingDeliveredKeywords,
		cfg.TrackingFetchTimeoutMS, cfg.TrackingFetchMaxRetries, log)

	log.Info("worker started",
		zap.Int("tracked_carriers", len(cfg.TrackingURLTemplates)),
		zap.Duration("tracking_interval", cfg.TrackingPollInterval),
	)

	paymentTimeout := time.Duration(cfg.OrderPaymentTimeoutSeconds) * time.Second
	staleTicker := time.NewTicker(2 * time.Minute)
	trackingTicker := time.NewTicker(cfg.TrackingPollInterval)
	defer staleTicker.Stop()
	defer trackingTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-staleTicker.C:
			runStaleCancellation(ctx, orderService, paymentTimeout, log)
		case <-trackingTicker.C:
			if len(cfg.TrackingURLTemplates) > 0 {
				runTrackingPoll(ctx, orderService, tracker, log)
			}
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runStaleCancellation(ctx context.Context, orderService *services.OrderService, maxAge time.Duration, log *zap.Logger) {
	n, err := orderService.CancelStalePending(ctx, maxAge)
	if err != nil {
		log.Error("failed to cancel stale orders", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("cancelled unpaid orders", zap.Int("count", n))
	}
}

func runTrackingPoll(ctx context.Context, orderService *services.OrderService, tracker services.ShipmentTracker, log *zap.Logger) {
	n, err := orderService.PollShipments(ctx, tracker)
	if err != nil {
		log.Error("tracking poll failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("orders delivered", zap.Int("count", n))
	}
}
