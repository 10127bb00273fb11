package handlers

import (
	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/http/dto"
	"github.com/c2c-marketplace/backend/internal/idempotency"
	"github.com/c2c-marketplace/backend/internal/payment"
	"github.com/c2c-marketplace/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WebhookHandler receives payment processor notifications. A 5xx answer makes
// the processor redeliver; anything the order cannot accept is acknowledged.
type WebhookHandler struct {
	orderService *services.OrderService
	seen         *idempotency.Store
	secret       string
	log          *zap.Logger
}

func NewWebhookHandler(orderService *services.OrderService, seen *idempotency.Store, secret string, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{orderService: orderService, seen: seen, secret: secret, log: log}
}

func (h *WebhookHandler) Stripe(c *fiber.Ctx) error {
	if h.secret == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "webhook not configured", Reason: "webhook_disabled"})
	}

	ev, err := payment.ParseWebhook(c.Body(), c.Get("Stripe-Signature"), h.secret)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if ev.Charge == nil {
		return c.JSON(dto.SuccessResponse{OK: true})
	}

	ctx := c.UserContext()
	dup, err := h.seen.Seen(ctx, ev.ID)
	if err != nil {
		h.log.Warn("webhook dedupe lookup failed", zap.String("event_id", ev.ID), zap.Error(err))
	}
	if dup {
		return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"duplicate": true}})
	}

	o, err := h.orderService.ApplyProcessorPayment(ctx, ev.Charge)
	if err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeInternal, apperr.CodeUnavailable, apperr.CodeConflict:
			return respondError(c, h.log, err)
		}
		h.log.Warn("webhook payment not applied",
			zap.String("event_id", ev.ID),
			zap.String("order_id", ev.OrderID),
			zap.String("reason", apperr.ReasonOf(err)),
		)
		h.mark(c, ev.ID)
		return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"applied": false, "reason": apperr.ReasonOf(err)}})
	}

	h.mark(c, ev.ID)
	return c.JSON(dto.SuccessResponse{OK: true, Data: o.View()})
}

func (h *WebhookHandler) mark(c *fiber.Ctx, eventID string) {
	if err := h.seen.Mark(c.UserContext(), eventID); err != nil {
		h.log.Warn("webhook dedupe mark failed", zap.String("event_id", eventID), zap.Error(err))
	}
}
