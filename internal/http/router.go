package http

import (
	"time"

	"github.com/c2c-marketplace/backend/internal/config"
	"github.com/c2c-marketplace/backend/internal/http/handlers"
	"github.com/c2c-marketplace/backend/internal/metrics"
	"github.com/c2c-marketplace/backend/internal/middleware"
	"github.com/c2c-marketplace/backend/internal/rbac"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	m *metrics.Metrics,
	orderHandler *handlers.OrderHandler,
	negotiationHandler *handlers.NegotiationHandler,
	disputeHandler *handlers.DisputeHandler,
	payoutHandler *handlers.PayoutHandler,
	webhookHandler *handlers.WebhookHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	api := app.Group("/api/v1")

	// Processor notifications authenticate by signature
	api.Post("/webhooks/stripe", webhookHandler.Stripe)

	protected := api.Group("", middleware.AuthMiddleware(cfg, log))
	protected.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMin, time.Minute))

	// Negotiations
	protected.Post("/negotiations", negotiationHandler.Propose)
	protected.Get("/negotiations/:id", negotiationHandler.GetNegotiation)
	protected.Post("/negotiations/:id/respond", negotiationHandler.Respond)
	protected.Get("/negotiations/:id/offers", negotiationHandler.ListOffers)
	protected.Get("/conversations/:id/negotiations", negotiationHandler.ListByConversation)

	// Orders
	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Get("/orders/:id/events", orderHandler.GetOrderEvents)
	protected.Post("/orders/:id/payment", orderHandler.ConfirmPayment)
	protected.Post("/orders/:id/payment/cash", middleware.RequirePermission(rbac.PermConfirmCash, log), orderHandler.ConfirmCashPayment)
	protected.Put("/orders/:id/meetup", orderHandler.ArrangeMeetup)
	protected.Post("/orders/:id/ship", orderHandler.ShipOrder)
	protected.Post("/orders/:id/delivered", orderHandler.MarkDelivered)
	protected.Post("/orders/:id/confirm", orderHandler.ConfirmCompletion)
	protected.Post("/orders/:id/cancel", orderHandler.CancelOrder)
	protected.Post("/orders/:id/refund", middleware.RequirePermission(rbac.PermForceRefund, log), orderHandler.RefundOrder)

	// Disputes
	protected.Post("/orders/:id/disputes", disputeHandler.OpenDispute)
	protected.Get("/orders/:id/disputes", disputeHandler.ListDisputes)
	protected.Get("/orders/:id/disputes/open", disputeHandler.GetOpenDispute)
	protected.Get("/disputes/:id", disputeHandler.GetDispute)
	protected.Post("/disputes/:id/resolve", middleware.RequirePermission(rbac.PermResolveDispute, log), disputeHandler.ResolveDispute)

	// Payouts
	protected.Get("/orders/:id/payout", payoutHandler.GetOrderPayout)
	protected.Get("/payouts", payoutHandler.ListPayouts)
	protected.Get("/payouts/summary", payoutHandler.Summary)
	protected.Get("/payouts/:id", payoutHandler.GetPayout)
	protected.Post("/payouts/:id/advance", middleware.RequirePermission(rbac.PermManagePayouts, log), payoutHandler.AdvancePayout)

	// Bank profiles
	protected.Put("/me/bank-profile", payoutHandler.UpsertMyBankProfile)
	protected.Get("/me/bank-profile", payoutHandler.GetMyBankProfile)
	protected.Get("/sellers/:id/bank-profile", middleware.RequirePermission(rbac.PermManagePayouts, log), payoutHandler.GetSellerBankProfile)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
