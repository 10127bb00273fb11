package handlers

import (
	"github.com/c2c-marketplace/backend/internal/http/dto"
	"github.com/c2c-marketplace/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DisputeHandler struct {
	disputeService *services.DisputeService
	log            *zap.Logger
}

func NewDisputeHandler(disputeService *services.DisputeService, log *zap.Logger) *DisputeHandler {
	return &DisputeHandler{disputeService: disputeService, log: log}
}

func (h *DisputeHandler) OpenDispute(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}
	var req dto.OpenDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request")
	}

	d, o, err := h.disputeService.OpenDispute(c.UserContext(), actorFrom(c), orderID, req.Reason, req.Description)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.DisputeResponse{Dispute: d, Order: o.View()}})
}

func (h *DisputeHandler) ListDisputes(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}

	list, err := h.disputeService.ListDisputes(c.UserContext(), actorFrom(c), orderID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: list})
}

func (h *DisputeHandler) GetOpenDispute(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}

	d, err := h.disputeService.GetOpenDispute(c.UserContext(), actorFrom(c), orderID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: d})
}

func (h *DisputeHandler) GetDispute(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_dispute_id", "invalid dispute id")
	}

	d, err := h.disputeService.GetDispute(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: d})
}

func (h *DisputeHandler) ResolveDispute(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_dispute_id", "invalid dispute id")
	}
	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request")
	}

	d, o, err := h.disputeService.ResolveDispute(c.UserContext(), actorFrom(c), id, req.Action, req.Note)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.DisputeResponse{Dispute: d, Order: o.View()}})
}
