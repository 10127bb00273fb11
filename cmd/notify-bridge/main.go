package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/c2c-marketplace/backend/internal/config"
	"github.com/c2c-marketplace/backend/internal/db"
	"github.com/c2c-marketplace/backend/internal/events"
	"github.com/c2c-marketplace/backend/internal/services"
	"go.uber.org/zap"
)

// Notify bridge subscribes to Redis events and forwards party notifications
// to the chat service.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	chat := services.NewChatClient(cfg.ChatInternalURL, log)

	log.Info("notify-bridge started")

	forward := func(event events.Event) {
		for _, n := range services.NotificationsFor(event) {
			log.Debug("forwarding notification", zap.String("type", event.Type), zap.String("user_id", n.UserID.String()))
			_ = chat.Notify(ctx, n.UserID, n.Text)
		}
	}
	for _, stream := range []string{events.StreamOrders, events.StreamNegotiations, events.StreamPayouts} {
		if err := subscriber.Subscribe(ctx, stream, forward); err != nil {
			log.Fatal("failed to subscribe", zap.String("stream", stream), zap.Error(err))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}
